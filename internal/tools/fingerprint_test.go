package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Args{"keyword": "urgent", "max": int64(15), "account": "default"}
	b := Args{"account": "default", "max": int64(15), "keyword": "urgent"}

	assert.Equal(t, Fingerprint("search_email_by_keyword", a), Fingerprint("search_email_by_keyword", b),
		"value-equal arguments must produce identical cache keys")
}

func TestFingerprintDistinguishes(t *testing.T) {
	base := Args{"keyword": "urgent"}

	assert.NotEqual(t,
		Fingerprint("search_email_by_keyword", base),
		Fingerprint("list_recent_email", base),
		"tool name is part of the key")

	assert.NotEqual(t,
		Fingerprint("search_email_by_keyword", base),
		Fingerprint("search_email_by_keyword", Args{"keyword": "later"}),
		"argument values are part of the key")
}

func TestFingerprintAfterNormalization(t *testing.T) {
	schema := Schema{
		{Name: "keyword", Type: TypeString, Required: true},
		{Name: "max", Type: TypeInt, Default: int64(15)},
	}

	implicit, err := schema.Normalize(Args{"keyword": "urgent"})
	require.NoError(t, err)
	explicit, err := schema.Normalize(Args{"keyword": "urgent", "max": float64(15)})
	require.NoError(t, err)

	assert.Equal(t, Fingerprint("t", implicit), Fingerprint("t", explicit),
		"an omitted default and an explicit equal value must hash identically")
}

func TestFingerprintTimeZoneCanonical(t *testing.T) {
	schema := Schema{{Name: "start", Type: TypeTime, Required: true}}

	utc, err := schema.Normalize(Args{"start": "2026-09-01T08:00:00Z"})
	require.NoError(t, err)
	offset, err := schema.Normalize(Args{"start": "2026-09-01T10:00:00+02:00"})
	require.NoError(t, err)

	assert.Equal(t, Fingerprint("t", utc), Fingerprint("t", offset))
}
