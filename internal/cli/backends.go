package cli

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mindcanvas/internal/config"
	"github.com/matzehuels/mindcanvas/pkg/collab"
	"github.com/matzehuels/mindcanvas/pkg/collab/natschan"
	"github.com/matzehuels/mindcanvas/pkg/collab/redischan"
	"github.com/matzehuels/mindcanvas/pkg/collab/wschan"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/storage"
	"github.com/matzehuels/mindcanvas/pkg/storage/filestore"
	"github.com/matzehuels/mindcanvas/pkg/storage/mongostore"
)

// backend is an opened persister and the function that releases it.
type backend struct {
	storage.Persister
	name  string
	where string
	close func(context.Context) error
}

// openStorage opens the configured document store.
func openStorage(ctx context.Context, cfg config.StorageConfig) (*backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		fs, err := filestore.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return &backend{
			Persister: storage.Instrument(fs, config.BackendFile),
			name:      config.BackendFile,
			where:     fs.Path(),
			close:     func(context.Context) error { return nil },
		}, nil
	case config.BackendMongo:
		ms, err := mongostore.Dial(ctx, mongostore.Options{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			Timeout:    cfg.Timeout.D(),
		})
		if err != nil {
			return nil, err
		}
		return &backend{
			Persister: storage.Instrument(ms, config.BackendMongo),
			name:      config.BackendMongo,
			where:     cfg.MongoURI,
			close:     ms.Close,
		}, nil
	}
	return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unknown storage backend %q", cfg.Backend)
}

// openChannel dials the configured collaboration transport. It returns nil
// for transport "none".
func openChannel(ctx context.Context, transport string, cfg config.CollabConfig, userID string, logger *log.Logger) (collab.Channel, error) {
	var (
		ch  collab.Channel
		err error
	)
	switch transport {
	case config.TransportNone, "":
		return nil, nil
	case config.TransportRedis:
		ch, err = redischan.Dial(ctx, redischan.Options{URL: cfg.RedisURL, Prefix: cfg.Prefix, Logger: logger})
	case config.TransportNATS:
		ch, err = natschan.Dial(natschan.Options{URL: cfg.NATSURL, Prefix: cfg.Prefix, Name: appName + "-" + userID, Logger: logger})
	case config.TransportWebsocket:
		ch, err = wschan.New(wschan.Options{URL: cfg.RelayURL, UserID: userID, Logger: logger})
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unknown collaboration transport %q", transport)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}
