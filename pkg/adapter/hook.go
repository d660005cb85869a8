package adapter

import (
	"context"
	"log/slog"

	"github.com/pseudomuto/departure/pkg/migrator"
)

// MigrationHook switches the adapter's online mode around each migration according to
// the migration's departure:enable / departure:disable directive.
type MigrationHook struct {
	adapter          *Adapter
	enabledByDefault bool
}

// NewMigrationHook returns a hook for a. Migrations without a directive use
// enabledByDefault.
func NewMigrationHook(a *Adapter, enabledByDefault bool) *MigrationHook {
	return &MigrationHook{adapter: a, enabledByDefault: enabledByDefault}
}

// BeforeMigration sets online mode for m.
func (h *MigrationHook) BeforeMigration(_ context.Context, m *migrator.Migration) error {
	online := m.Online(h.enabledByDefault)
	h.adapter.SetOnline(online)

	if online {
		h.adapter.Logger().Say("Departure enabled for "+m.ID(), false)
	} else {
		h.adapter.Logger().Say("Departure disabled for "+m.ID(), false)
	}

	slog.Debug("Online schema change mode set", "migration", m.ID(), "online", online, "directive", m.Directive.String())
	return nil
}

// AfterMigration restores the default mode. The migration error is only logged, the
// caller still owns it.
func (h *MigrationHook) AfterMigration(_ context.Context, m *migrator.Migration, err error) error {
	h.adapter.SetOnline(h.enabledByDefault)

	if err != nil {
		slog.Debug("Migration finished with error", "migration", m.ID(), "error", err)
	}

	return nil
}
