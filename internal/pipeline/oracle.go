package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/parse"
	"github.com/dusk-indust/girder/internal/resolve"
)

// languageOracle fans Locate calls out to the language server configured
// for the reference's language. Languages without a configured server
// miss, which leaves the prior tier's answer standing.
type languageOracle struct {
	oracles map[parse.Language]resolve.Oracle
}

// newLanguageOracle spawns one LSP oracle per configured command.
// Returns nil when tier 3 is disabled or nothing is configured.
func newLanguageOracle(root string, cfg config.Tier3Config, log *slog.Logger) *languageOracle {
	if !cfg.Enabled || len(cfg.Commands) == 0 {
		return nil
	}
	oracles := make(map[parse.Language]resolve.Oracle)
	for name, cmd := range cfg.Commands {
		if len(cmd) == 0 {
			continue
		}
		lang := parse.Language(name)
		oracle, err := resolve.NewLSPOracle(root, cmd[0], cmd[1:]...)
		if err != nil {
			log.Warn("language server unavailable", "language", name, "command", cmd[0], "err", err)
			continue
		}
		oracles[lang] = oracle
	}
	if len(oracles) == 0 {
		return nil
	}
	return &languageOracle{oracles: oracles}
}

func (m *languageOracle) Locate(ctx context.Context, ref parse.Reference) (resolve.SymbolKey, float64, error) {
	lang, ok := parse.DetectLanguage(ref.FilePath)
	if !ok {
		return resolve.SymbolKey{}, 0, resolve.ErrOracleMiss
	}
	oracle, ok := m.oracles[lang]
	if !ok {
		return resolve.SymbolKey{}, 0, resolve.ErrOracleMiss
	}
	return oracle.Locate(ctx, ref)
}

func (m *languageOracle) Close() error {
	var errs []error
	for _, o := range m.oracles {
		errs = append(errs, o.Close())
	}
	return errors.Join(errs...)
}
