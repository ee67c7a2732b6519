package kafka

// TopicFulfillmentOrderEvents — единый topic событий управления fulfillment-заказами.
const TopicFulfillmentOrderEvents = "fulfillment.order_management.v1.events"
