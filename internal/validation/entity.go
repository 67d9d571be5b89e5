package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/packsync/internal/models"
)

// ErrInvalid оборачивает все ошибки валидации
var ErrInvalid = errors.New("validation failed")

// ColorPattern допустимый цвет сумки: #rrggbb
var ColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const (
	// MaxNameLen максимальная длина названия (в символах)
	MaxNameLen = 120
	// MaxNotesLen максимальная длина заметки к вещи
	MaxNotesLen = 2000
	// MaxQuantity максимальное количество одной вещи
	MaxQuantity = 999
)

// allowedFields поля, которые можно менять через update
var allowedFields = map[models.EntityType][]string{
	models.EntityList:     {"name"},
	models.EntityCategory: {"name"},
	models.EntityBag:      {"name", "color"},
	models.EntityTraveler: {"name"},
	models.EntityItem:     {"name", "notes", "quantity", "packed", "categoryId", "bagId", "travelerId"},
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateName проверяет название сущности: не пустое, не длиннее MaxNameLen символов
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return invalid("name must not exceed %d characters", MaxNameLen)
	}
	return nil
}

// ValidateColor accepts an empty color or #rrggbb.
func ValidateColor(color string) error {
	if color == "" || ColorPattern.MatchString(color) {
		return nil
	}
	return invalid("color must look like #a1b2c3")
}

// ValidateQuantity accepts 0 (unset) through MaxQuantity.
func ValidateQuantity(q int) error {
	if q < 0 || q > MaxQuantity {
		return invalid("quantity must be between 0 and %d", MaxQuantity)
	}
	return nil
}

// ValidateNotes limits the length of item notes.
func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLen {
		return invalid("notes must not exceed %d characters", MaxNotesLen)
	}
	return nil
}

// ValidateCategory checks a new category.
func ValidateCategory(c *models.Category) error {
	return ValidateName(c.Name)
}

// ValidateBag checks a new bag.
func ValidateBag(b *models.Bag) error {
	if err := ValidateName(b.Name); err != nil {
		return err
	}
	return ValidateColor(b.Color)
}

// ValidateTraveler checks a new traveler.
func ValidateTraveler(t *models.Traveler) error {
	return ValidateName(t.Name)
}

// ValidateItem checks a new item.
func ValidateItem(i *models.Item) error {
	if err := ValidateName(i.Name); err != nil {
		return err
	}
	if err := ValidateNotes(i.Notes); err != nil {
		return err
	}
	return ValidateQuantity(i.Quantity)
}

// ValidateChanges проверяет набор изменений для update: только известные поля
// и значения подходящего типа. Значения приходят как из JSON, так и из CLI.
func ValidateChanges(entityType models.EntityType, changes map[string]any) error {
	fields, ok := allowedFields[entityType]
	if !ok {
		return invalid("unknown entity %q", entityType)
	}
	if len(changes) == 0 {
		return invalid("no changes")
	}

	for key, value := range changes {
		if !contains(fields, key) {
			return invalid("%s has no field %q", entityType, key)
		}
		if err := validateField(key, value); err != nil {
			return err
		}
	}
	return nil
}

func contains(fields []string, key string) bool {
	for _, f := range fields {
		if f == key {
			return true
		}
	}
	return false
}

func validateField(key string, value any) error {
	switch key {
	case "name", "notes", "color":
		s, ok := value.(string)
		if !ok {
			return invalid("%s must be a string", key)
		}
		switch key {
		case "name":
			return ValidateName(s)
		case "notes":
			return ValidateNotes(s)
		default:
			return ValidateColor(s)
		}

	case "packed":
		if _, ok := value.(bool); !ok {
			return invalid("packed must be true or false")
		}

	case "quantity":
		q, ok := AsInt64(value)
		if !ok {
			return invalid("quantity must be an integer")
		}
		return ValidateQuantity(int(q))

	case "categoryId", "bagId", "travelerId":
		// nil снимает привязку
		if value == nil {
			return nil
		}
		id, ok := AsInt64(value)
		if !ok || id <= 0 {
			return invalid("%s must be a positive id or null", key)
		}
	}
	return nil
}

// AsInt64 converts integral numbers coming from JSON or Go code.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
