// Package httpapi implements the HTTP Facade (§4.10): a thin request/
// response layer exposing enrollment, balance, claim-authorization, and
// analytics endpoints. Handlers parse input, delegate to exactly one core
// component, map typed apperr errors to status codes, and never leak
// internal error text to clients (§7). Routed with go-chi/chi/v5, CORS via
// go-chi/cors, the same routing stack AKJUS-bsc-erigon's go.mod carries.
package httpapi

import (
	"context"
	"math/big"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/claims"
	"github.com/blackhole-labs/lp-reward-engine/internal/lifecycle"
	"github.com/blackhole-labs/lp-reward-engine/internal/rewards"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the subset of *store.Store the HTTP Facade needs across every
// handler group.
type Store interface {
	GetOrCreateUser(ctx context.Context, address common.Address) (*rewardengine.User, error)
	GetUserByAddress(ctx context.Context, address common.Address) (*rewardengine.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*rewardengine.User, error)
	UpsertPosition(ctx context.Context, pos rewardengine.EnrolledPosition) error
	GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error)
	GetRewardAccruals(ctx context.Context, userID uuid.UUID) ([]rewardengine.RewardAccrual, error)
	GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error)
	GetCumulativeAuthorized(ctx context.Context, address common.Address) (*big.Int, error)
	GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error)
	GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error)
	PutTreasuryConfig(ctx context.Context, cfg rewardengine.TreasuryConfig) error
	PutProgramSettings(ctx context.Context, settings rewardengine.ProgramSettings) error
	RecordAdminOperation(ctx context.Context, op rewardengine.AdminOperation) error
}

// ChainReader is the subset of *chain.Reader the HTTP Facade needs, used
// directly only by the bulk-registration handler.
type ChainReader interface {
	FetchPositionsOfOwner(ctx context.Context, owner common.Address) ([]chain.RawPosition, error)
	FetchPoolState(ctx context.Context) (chain.PoolState, error)
}

// PositionValuer is the subset of *valuation.Valuer the bulk-registration
// handler needs to price a position at enrollment time.
type PositionValuer interface {
	ValueUSD(ctx context.Context, token0, token1 common.Address, liquidity *big.Int, tickLower, tickUpper int32, sqrtPriceX96 *big.Int) (decimal.Decimal, error)
}

// Server wires every core component the HTTP Facade delegates to and
// exposes chi's http.Handler.
type Server struct {
	store       Store
	chainReader ChainReader
	valuer      PositionValuer
	analytics   *rewards.Analytics
	authorizer  *claims.Authorizer
	reconciler  *lifecycle.Reconciler
	logger      *zap.Logger
	jwtSecret   []byte

	now func() time.Time
}

// NewServer wires the Facade's dependencies.
func NewServer(
	store Store,
	chainReader ChainReader,
	valuer PositionValuer,
	analytics *rewards.Analytics,
	authorizer *claims.Authorizer,
	reconciler *lifecycle.Reconciler,
	logger *zap.Logger,
	jwtSecret []byte,
) *Server {
	return &Server{
		store:       store,
		chainReader: chainReader,
		valuer:      valuer,
		analytics:   analytics,
		authorizer:  authorizer,
		reconciler:  reconciler,
		logger:      logger,
		jwtSecret:   jwtSecret,
		now:         time.Now,
	}
}

// Routes builds the chi router for every §6 endpoint plus the §6.1 admin path.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/users", s.handleCreateUser)
	r.Get("/users/{address}", s.handleGetUser)

	r.Post("/positions/register/bulk", s.handleRegisterBulk)
	r.Get("/positions/eligible/{address}", s.handleEligiblePositions)
	r.Get("/positions/user/{userId}", s.handlePositionsByUser)

	r.Get("/rewards/user/{userId}", s.handleRewardsByUser)
	r.Get("/rewards/user/{userId}/stats", s.handleRewardStats)
	r.Get("/rewards/user/{userId}/claimable", s.handleClaimable)
	r.Post("/rewards/claim/{userId}", s.handleClaim)
	r.Get("/rewards/program-analytics", s.handleProgramAnalytics)

	r.Get("/trading-fees/pool-apr", s.handlePoolAPR)

	r.Get("/position-lifecycle/status", s.handleLifecycleStatus)
	r.Post("/position-lifecycle/check-user/{address}", s.handleCheckUser)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.requireAdminJWT)
		admin.Put("/treasury-config", s.handlePutTreasuryConfig)
		admin.Put("/program-settings", s.handlePutProgramSettings)
	})

	return r
}
