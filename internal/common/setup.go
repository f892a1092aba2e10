package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"token-vesting-go/internal/access"
	"token-vesting-go/internal/api"
	"token-vesting-go/internal/config"
	"token-vesting-go/internal/database"
	"token-vesting-go/internal/events"
	"token-vesting-go/internal/formance"
	"token-vesting-go/internal/models"
	"token-vesting-go/internal/oracle"
	"token-vesting-go/internal/timesource"
	"token-vesting-go/internal/token"
	"token-vesting-go/internal/vesting"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// TokenLedger is what the CLI drives on any deployed asset, local or foreign
type TokenLedger interface {
	vesting.AssetLedger
	Approve(ctx context.Context, caller, spender models.Account, amount *uint256.Int) error
}

var (
	_ TokenLedger = (*token.Ledger)(nil)
	_ TokenLedger = (*formance.Ledger)(nil)
)

type Services struct {
	DbService     *database.Service
	Deployment    *models.Deployment
	VesterAccount models.Account
	Owner         *access.Ownable
	Local         map[models.AssetRef]*token.Ledger
	Foreign       map[models.AssetRef]*formance.Ledger
	Ledgers       vesting.Ledgers
	Oracles       *oracle.Registry
	Clock         timesource.Clock
	Sink          events.Sink
	Vester        *vesting.Vester
	Api           *api.LedgerService

	closers []func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the store and wires every deployed ledger and oracle into a Vester.
// A nil clock means the system clock.
func InitializeServices(ctx context.Context, cfg *models.Config, deployment *models.Deployment, clock timesource.Clock) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	s := &Services{
		DbService:  dbService,
		Deployment: deployment,
		Local:      make(map[models.AssetRef]*token.Ledger),
		Foreign:    make(map[models.AssetRef]*formance.Ledger),
		Ledgers:    make(vesting.Ledgers),
		Oracles:    oracle.NewRegistry(),
		Clock:      clock,
	}
	if s.Clock == nil {
		s.Clock = &timesource.SystemClock{}
	}

	if err := s.wire(ctx, cfg, deployment); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) wire(ctx context.Context, cfg *models.Config, deployment *models.Deployment) error {
	vesterAccount, err := models.ParseAccount(deployment.VesterAccount)
	if err != nil {
		return fmt.Errorf("vester account: %w", err)
	}
	s.VesterAccount = vesterAccount

	if deployment.Owner != "" {
		owner, err := models.ParseAccount(deployment.Owner)
		if err != nil {
			return fmt.Errorf("owner: %w", err)
		}
		s.Owner = access.NewOwnable(owner)
	}

	s.Sink = s.initializeSink(cfg.Events)

	if err := s.initializeLedgers(ctx, deployment); err != nil {
		return err
	}

	if err := s.initializeOracles(deployment, cfg.Oracle); err != nil {
		return err
	}

	times := timesource.NewAdapter(s.Clock, s.Oracles, cfg.Oracle.Timeout)
	s.Vester = vesting.NewVester(s.DbService, s.Ledgers, times, s.VesterAccount, s.Sink)
	s.Api = api.NewLedgerService(s.DbService, s.Vester)

	zap.L().Info("Services initialized",
		zap.String("vester", s.VesterAccount.String()),
		zap.Int("assets", len(s.Ledgers)),
		zap.Int("oracles", s.Oracles.Len()))
	return nil
}

func (s *Services) initializeSink(cfg models.EventsConfig) events.Sink {
	var sinks events.Multi
	if cfg.LogEvents {
		sinks = append(sinks, events.NewLogSink(zap.L()))
	}
	if cfg.RedisAddr == "" {
		return sinks
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	s.closers = append(s.closers, func() {
		if err := client.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	})
	zap.L().Info("Publishing events to redis",
		zap.String("addr", cfg.RedisAddr),
		zap.String("stream", cfg.RedisStream))
	return append(sinks, events.NewRedisSink(client, cfg.RedisStream, cfg.MaxLen))
}

func (s *Services) initializeLedgers(ctx context.Context, deployment *models.Deployment) error {
	var formanceService *formance.Service

	for _, asset := range deployment.Assets {
		ref, err := models.ParseAssetRef(asset.Id)
		if err != nil {
			return fmt.Errorf("asset %s: %w", asset.Id, err)
		}

		switch asset.Backend {
		case config.BackendFormance:
			if formanceService == nil {
				formanceService, err = formance.NewService(ctx, deployment.Formance)
				if err != nil {
					return err
				}
				s.closers = append(s.closers, formanceService.Close)
			}
			ledger := formanceService.Asset(ref, asset.Symbol, asset.Decimals)
			s.Foreign[ref] = ledger
			s.Ledgers[ref] = ledger
		default:
			opts := []token.Option{token.WithSink(s.Sink)}
			if s.Owner != nil {
				opts = append(opts, token.WithPolicy(s.Owner))
			}
			if len(asset.Deny) > 0 {
				denied := make([]models.Account, 0, len(asset.Deny))
				for _, d := range asset.Deny {
					account, err := models.ParseAccount(d)
					if err != nil {
						return fmt.Errorf("asset %s deny list: %w", asset.Id, err)
					}
					denied = append(denied, account)
				}
				opts = append(opts, token.WithHook(token.NewDenyList(denied...)))
			}
			ledger := token.NewLedger(s.DbService, ref, opts...)
			s.Local[ref] = ledger
			s.Ledgers[ref] = ledger
		}

		zap.L().Debug("Asset ledger ready",
			zap.String("asset", ref.String()),
			zap.String("backend", asset.Backend))
	}
	return nil
}

func (s *Services) initializeOracles(deployment *models.Deployment, cfg models.OracleConfig) error {
	for _, od := range deployment.Oracles {
		account, err := models.ParseAccount(od.Account)
		if err != nil {
			return fmt.Errorf("oracle account: %w", err)
		}

		switch od.Transport {
		case config.TransportStatic:
			s.Oracles.Register(account, oracle.NewStaticProvider(od.Start, od.End))
		case config.TransportGRPC:
			client, err := oracle.Dial(od.Endpoint, oracle.DialOptions{Timeout: cfg.Timeout})
			if err != nil {
				return err
			}
			s.closers = append(s.closers, func() {
				if err := client.Close(); err != nil {
					zap.L().Warn("Failed to close oracle connection", zap.Error(err))
				}
			})
			s.Oracles.Register(account, client)
		case config.TransportHTTP:
			client, err := oracle.NewHTTPClient(od.Endpoint, cfg.Timeout)
			if err != nil {
				return err
			}
			s.Oracles.Register(account, client)
		default:
			return fmt.Errorf("oracle %s has unknown transport %q", od.Account, od.Transport)
		}
	}
	return nil
}

// Ledger returns the ledger serving asset
func (s *Services) Ledger(asset models.AssetRef) (TokenLedger, error) {
	if l, ok := s.Local[asset]; ok {
		return l, nil
	}
	if l, ok := s.Foreign[asset]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("asset %s is not deployed", asset)
}

// LocalLedger returns the sqlite-backed ledger of asset, for operations foreign ledgers do not offer
func (s *Services) LocalLedger(asset models.AssetRef) (*token.Ledger, error) {
	l, ok := s.Local[asset]
	if !ok {
		return nil, fmt.Errorf("asset %s is not a local ledger", asset)
	}
	return l, nil
}

// Decimals reports the display precision of asset
func (s *Services) Decimals(asset models.AssetRef) int {
	if s.Deployment == nil {
		return 0
	}
	for _, a := range s.Deployment.Assets {
		if ref, err := models.ParseAssetRef(a.Id); err == nil && ref == asset {
			return a.Decimals
		}
	}
	return 0
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	for i := len(cs.closers) - 1; i >= 0; i-- {
		cs.closers[i]()
	}
	cs.closers = nil
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
