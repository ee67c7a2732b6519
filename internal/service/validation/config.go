package validation

// Config собирает настраиваемые параметры валидации и приёма заказов.
type Config struct {
	// MaxTotalQuantity — максимальное суммарное количество единиц в заказе.
	MaxTotalQuantity int
	// MaxItemsPerOrder — максимальное число позиций в заказе.
	MaxItemsPerOrder int
	// MinOrderValueMinor — минимальная стоимость заказа в минимальных денежных единицах.
	MinOrderValueMinor int64
	// MaxOrderValueMinor — максимальная стоимость заказа.
	MaxOrderValueMinor int64
	// CheckProductCatalog включает проверку существования SKU в каталоге.
	CheckProductCatalog bool
	// EnableOrderValueValidation включает проверку стоимости заказа через каталог.
	EnableOrderValueValidation bool
	// RejectDuplicateSKUs — отклонять заказы с повторяющимися SKU в позициях.
	RejectDuplicateSKUs bool
	// DuplicateDetectionWindowHours — окно fuzzy-поиска дубликатов, часы.
	DuplicateDetectionWindowHours int
	// RejectFuzzyDuplicates — отклонять fuzzy-дубликаты вместо предупреждения в лог.
	RejectFuzzyDuplicates bool
}

// DefaultConfig возвращает значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxTotalQuantity:              100000,
		MaxItemsPerOrder:              100,
		MinOrderValueMinor:            1,
		MaxOrderValueMinor:            100_000_000,
		CheckProductCatalog:           false,
		EnableOrderValueValidation:    false,
		RejectDuplicateSKUs:           true,
		DuplicateDetectionWindowHours: 24,
		RejectFuzzyDuplicates:         false,
	}
}
