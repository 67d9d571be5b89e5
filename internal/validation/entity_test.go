package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/packsync/internal/models"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		errMsg  string
	}{
		{name: "valid", value: "Passport"},
		{name: "valid - cyrillic", value: "Зубная щетка"},
		{name: "valid - max length", value: strings.Repeat("я", MaxNameLen)},
		{name: "invalid - empty", value: "", wantErr: true, errMsg: "name cannot be empty"},
		{name: "invalid - spaces only", value: "   ", wantErr: true, errMsg: "name cannot be empty"},
		{name: "invalid - too long", value: strings.Repeat("a", MaxNameLen+1), wantErr: true, errMsg: "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateColor(t *testing.T) {
	assert.NoError(t, ValidateColor(""))
	assert.NoError(t, ValidateColor("#1a2B3c"))
	assert.Error(t, ValidateColor("red"))
	assert.Error(t, ValidateColor("#12345"))
}

func TestValidateItem(t *testing.T) {
	tests := []struct {
		item    *models.Item
		name    string
		wantErr bool
	}{
		{name: "valid", item: &models.Item{Name: "Socks", Quantity: 3}},
		{name: "no quantity", item: &models.Item{Name: "Socks"}},
		{name: "missing name", item: &models.Item{Quantity: 1}, wantErr: true},
		{name: "negative quantity", item: &models.Item{Name: "Socks", Quantity: -1}, wantErr: true},
		{name: "too many", item: &models.Item{Name: "Socks", Quantity: MaxQuantity + 1}, wantErr: true},
		{name: "long notes", item: &models.Item{Name: "Socks", Notes: strings.Repeat("x", MaxNotesLen+1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItem(tt.item)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateBag(t *testing.T) {
	assert.NoError(t, ValidateBag(&models.Bag{Name: "Carry-on", Color: "#ff0000"}))
	assert.Error(t, ValidateBag(&models.Bag{Name: "Carry-on", Color: "blue"}))
	assert.Error(t, ValidateBag(&models.Bag{}))
	assert.NoError(t, ValidateCategory(&models.Category{Name: "Clothes"}))
	assert.NoError(t, ValidateTraveler(&models.Traveler{Name: "Anna"}))
}

func TestValidateChanges(t *testing.T) {
	tests := []struct {
		changes    map[string]any
		name       string
		entityType models.EntityType
		errMsg     string
		wantErr    bool
	}{
		{name: "item packed", entityType: models.EntityItem, changes: map[string]any{"packed": true}},
		{name: "item quantity from JSON", entityType: models.EntityItem, changes: map[string]any{"quantity": float64(2)}},
		{name: "item unassign bag", entityType: models.EntityItem, changes: map[string]any{"bagId": nil}},
		{name: "item assign traveler", entityType: models.EntityItem, changes: map[string]any{"travelerId": int64(4)}},
		{name: "bag color", entityType: models.EntityBag, changes: map[string]any{"color": "#00ff00"}},
		{name: "list rename", entityType: models.EntityList, changes: map[string]any{"name": "Japan 2026"}},
		{name: "empty", entityType: models.EntityItem, changes: map[string]any{}, wantErr: true, errMsg: "no changes"},
		{name: "unknown entity", entityType: "suitcase", changes: map[string]any{"name": "x"}, wantErr: true, errMsg: "unknown entity"},
		{name: "unknown field", entityType: models.EntityCategory, changes: map[string]any{"color": "#000000"}, wantErr: true, errMsg: `no field "color"`},
		{name: "packed not bool", entityType: models.EntityItem, changes: map[string]any{"packed": "yes"}, wantErr: true, errMsg: "true or false"},
		{name: "fractional quantity", entityType: models.EntityItem, changes: map[string]any{"quantity": 1.5}, wantErr: true, errMsg: "integer"},
		{name: "zero id", entityType: models.EntityItem, changes: map[string]any{"bagId": 0}, wantErr: true, errMsg: "positive id"},
		{name: "empty name", entityType: models.EntityTraveler, changes: map[string]any{"name": ""}, wantErr: true, errMsg: "cannot be empty"},
		{name: "name not string", entityType: models.EntityItem, changes: map[string]any{"name": 42}, wantErr: true, errMsg: "must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChanges(tt.entityType, tt.changes)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in     any
		name   string
		want   int64
		wantOK bool
	}{
		{name: "int", in: 3, want: 3, wantOK: true},
		{name: "int64", in: int64(7), want: 7, wantOK: true},
		{name: "whole float", in: float64(9), want: 9, wantOK: true},
		{name: "fraction", in: 0.5},
		{name: "string", in: "3"},
		{name: "nil", in: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsInt64(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
