package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaNormalize(t *testing.T) {
	schema := Schema{
		{Name: "keyword", Type: TypeString, Required: true},
		{Name: "max", Type: TypeInt, Default: int64(15)},
		{Name: "verbose", Type: TypeBool},
	}

	tests := []struct {
		name    string
		args    Args
		want    Args
		wantErr string
	}{
		{
			name: "defaults applied",
			args: Args{"keyword": "urgent"},
			want: Args{"keyword": "urgent", "max": int64(15)},
		},
		{
			name: "explicit values kept",
			args: Args{"keyword": "urgent", "max": 50, "verbose": true},
			want: Args{"keyword": "urgent", "max": int64(50), "verbose": true},
		},
		{
			name: "float coerced to int",
			args: Args{"keyword": "urgent", "max": float64(20)},
			want: Args{"keyword": "urgent", "max": int64(20)},
		},
		{
			name:    "missing required",
			args:    Args{"max": 10},
			wantErr: `missing required argument "keyword"`,
		},
		{
			name:    "unknown argument",
			args:    Args{"keyword": "urgent", "limit": 10},
			wantErr: `unknown argument "limit"`,
		},
		{
			name:    "wrong type",
			args:    Args{"keyword": 42},
			wantErr: `argument "keyword"`,
		},
		{
			name:    "fractional int rejected",
			args:    Args{"keyword": "urgent", "max": 1.5},
			wantErr: `argument "max"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.Normalize(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidArguments)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchemaNormalizeTime(t *testing.T) {
	schema := Schema{{Name: "start", Type: TypeTime, Required: true}}

	got, err := schema.Normalize(Args{"start": "2026-09-01T10:00:00+02:00"})
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01T08:00:00Z", got["start"], "timestamps normalize to UTC")

	_, err = schema.Normalize(Args{"start": "tomorrow"})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestSchemaNormalizeLists(t *testing.T) {
	schema := Schema{
		{Name: "attendees", Type: TypeStringList},
		{Name: "reminders", Type: TypeIntList},
	}

	got, err := schema.Normalize(Args{
		"attendees": []any{"a@example.com", "b@example.com"},
		"reminders": []any{float64(10), 30},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got["attendees"])
	assert.Equal(t, []int64{10, 30}, got["reminders"])

	_, err = schema.Normalize(Args{"attendees": []any{"a@example.com", 7}})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
