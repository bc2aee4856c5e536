package main

import (
	"os"
	"strconv"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logger"
	"app/internal/server"
	"app/internal/usecase"
	auth "app/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// HS256のアクセストークン発行
type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID int64, role model.Role, tokenVersion int, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"tv":   tokenVersion,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	// .envがあれば読み込む（無くてもよい）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(os.Stdout, cfg.GoEnv, cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	); err != nil {
		log.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	hasher := auth.NewBcryptPasswordHasher(12)
	verifier := auth.NewBcryptPasswordVerifier()

	issuer := &jwtIssuer{
		secret:    []byte(cfg.JWTSecret),
		accessTTL: 15 * time.Minute,
	}
	refreshTTL := 14 * 24 * time.Hour

	//Usecase生成
	registerUC := auth.NewRegisterUserUsecase(userRepo, hasher, clock)
	loginUC := auth.NewLoginUsecase(userRepo, rtRepo, verifier, issuer, idGen, clock, refreshTTL)
	sessionUC := auth.NewSessionUsecase(userRepo, rtRepo, issuer, idGen, clock, refreshTTL)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, auditRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo)

	//Handler生成
	cookieSecure := cfg.GoEnv == "prod"
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(registerUC, loginUC, sessionUC, refreshTTL, cookieSecure),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	}

	e := server.New(cfg, log, handlers, userRepo)

	addr := ":" + cfg.Port
	log.Info("server starting", "addr", addr, "env", cfg.GoEnv)
	if err := e.Start(addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
