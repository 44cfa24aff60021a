package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required,min=2"`
	Email string `validate:"required,email"`
	Phone string `validate:"required,phone"`
	Date  string `validate:"omitempty,isodate"`
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{name: "valid", in: sample{Name: "Al", Email: "al@fest.example", Phone: "+91 98765-43210", Date: "2026-03-02"}},
		{name: "missing name", in: sample{Email: "al@fest.example", Phone: "+919876543210"}, wantErr: ErrFieldRequired},
		{name: "bad email", in: sample{Name: "Al", Email: "al", Phone: "+919876543210"}, wantErr: ErrInvalidEmail},
		{name: "bad phone", in: sample{Name: "Al", Email: "al@fest.example", Phone: "call me"}, wantErr: ErrInvalidPhone},
		{name: "impossible date", in: sample{Name: "Al", Email: "al@fest.example", Phone: "+919876543210", Date: "2026-02-30"}, wantErr: "YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(context.Background(), tt.in)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAll(t *testing.T) {
	t.Parallel()

	errs := ValidateAll(context.Background(), sample{Name: "A", Email: "nope", Phone: "x"})
	require.Len(t, errs, 3)
	assert.Equal(t, FieldError{Field: "Name", Message: ErrFieldBelowMinLen}, errs[0])
	assert.Equal(t, FieldError{Field: "Email", Message: ErrInvalidEmail}, errs[1])
	assert.Equal(t, FieldError{Field: "Phone", Message: ErrInvalidPhone}, errs[2])

	assert.Nil(t, ValidateAll(context.Background(), sample{Name: "Al", Email: "al@fest.example", Phone: "+919876543210"}))
}
