package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventrsvp/internal/domain"
)

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    []*domain.Attendee
		wantErr bool
	}{
		{
			name:    "valid",
			entries: []string{"a1|Ada Lovelace| Ada@Example.com ", "", "a2|Grace|grace@example.com"},
			want: []*domain.Attendee{
				{ID: "a1", Name: "Ada Lovelace", Email: "ada@example.com"},
				{ID: "a2", Name: "Grace", Email: "grace@example.com"},
			},
		},
		{name: "missing email", entries: []string{"a1|Ada|"}, wantErr: true},
		{name: "wrong arity", entries: []string{"a1|ada@example.com"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeed(tt.entries)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectory_Lookup(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(&domain.Attendee{ID: "a1", Name: "Ada", Email: "Ada@Example.com"})

	byEmail, err := d.GetByEmail(ctx, " ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", byEmail.ID)

	byID, err := d.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)

	_, err = d.GetByID(ctx, "a2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = domain.ResolveAttendee(ctx, d, "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrAttendeeNotFound)
}
