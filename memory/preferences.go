package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nova-labs/jarviscore/storage"
)

// preferenceKeyPrefix namespaces preference entries within the same
// memories table general key/value memories use, so a preference and a
// recalled fact never collide by key.
const preferenceKeyPrefix = "pref:"

// SetPreference stores a user preference (e.g. "wake_word", "tts_voice")
// as a namespaced memory row.
func SetPreference(ctx context.Context, db *storage.DB, name, value string) error {
	if err := db.UpsertMemory(ctx, preferenceKeyPrefix+name, value, nil); err != nil {
		return fmt.Errorf("memory: set preference %q: %w", name, err)
	}
	return nil
}

// GetPreference returns the stored value for name, or ok=false if unset.
func GetPreference(ctx context.Context, db *storage.DB, name string) (value string, ok bool, err error) {
	m, getErr := db.GetMemory(ctx, preferenceKeyPrefix+name)
	if errors.Is(getErr, sql.ErrNoRows) {
		return "", false, nil
	}
	if getErr != nil {
		return "", false, fmt.Errorf("memory: get preference %q: %w", name, getErr)
	}
	return m.Value, true, nil
}
