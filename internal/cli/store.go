package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store/badgerstore"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store/memstore"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store/sqlite"
)

// openStore opens the model store named by dsn, behind a model cache. An
// empty dsn means no store.
func openStore(ctx context.Context, dsn string, log *slog.Logger) (store.Store, error) {
	if dsn == "" {
		return nil, nil
	}
	scheme, path, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("%w: store %q must look like scheme://path", internalerr.ErrInvalidConfig, dsn)
	}

	var (
		s   store.Store
		err error
	)
	switch scheme {
	case "sqlite":
		s, err = sqlite.OpenSQLite(ctx, path)
	case "badger":
		s, err = badgerstore.Open(path, log)
	case "memory":
		s = memstore.New()
	default:
		return nil, fmt.Errorf("%w: unknown store scheme %q", internalerr.ErrInvalidConfig, scheme)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("Opened model store", "scheme", scheme, "path", path)
	return store.NewCached(s, store.DefaultCacheTTL), nil
}
