package routes

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/zjoart/varlixo/internal/auth"
	"github.com/zjoart/varlixo/internal/cryptodeposit"
	"github.com/zjoart/varlixo/internal/deposit"
	"github.com/zjoart/varlixo/internal/fx"
	"github.com/zjoart/varlixo/internal/kyc"
	"github.com/zjoart/varlixo/internal/market"
	"github.com/zjoart/varlixo/internal/middleware"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/plan"
	"github.com/zjoart/varlixo/internal/support"
	"github.com/zjoart/varlixo/internal/upload"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/internal/withdrawal"
	"github.com/zjoart/varlixo/pkg/config"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const apiPrefix = "/api/v1"

// Dependencies are the long lived clients built by main.
type Dependencies struct {
	DB       *gorm.DB
	Notifier notification.Notifier
	ChatRepo support.Repository
	Rates    *fx.Client
	Limiter  *middleware.RateLimiter
}

func RegisterRoutes(r *mux.Router, cfg config.Config, deps Dependencies) http.Handler {
	db := deps.DB
	tx := database.NewTransactor(db)

	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	processor := wallet.NewProcessor(walletRepo, tx)
	storage := upload.NewStorage(cfg.UploadDir, cfg.Host+apiPrefix)

	authService := auth.NewService(userRepo, processor, tx, deps.Notifier, cfg.JWTSecret, cfg.JWTTTL)
	depositService := deposit.NewService(deposit.NewRepository(db), processor, tx, userRepo, deps.Notifier, deposit.Settings{
		MinAmount:            cfg.MinDepositAmount,
		ReferralBonusPercent: cfg.ReferralBonusPercent,
	})
	withdrawalService := withdrawal.NewService(withdrawal.NewRepository(db), processor, tx, deps.Notifier, withdrawal.Settings{
		MinAmount:  cfg.MinWithdrawalAmount,
		FeePercent: cfg.WithdrawalFeePercent,
	})
	cryptoService := cryptodeposit.NewService(cryptodeposit.NewRepository(db), processor, tx, cryptodeposit.NewSealer(cfg.CryptoKeySecret), deps.Notifier)
	kycService := kyc.NewService(kyc.NewRepository(db), userRepo, tx, deps.Notifier)
	chat := support.NewManager(deps.ChatRepo, support.NewHub())

	authHandler := auth.NewHandler(authService)
	walletHandler := wallet.NewHandler(walletRepo, processor, userRepo)
	depositHandler := deposit.NewHandler(depositService, storage)
	withdrawalHandler := withdrawal.NewHandler(withdrawalService)
	cryptoHandler := cryptodeposit.NewHandler(cryptoService)
	kycHandler := kyc.NewHandler(kycService, storage)
	planHandler := plan.NewHandler(plan.NewRepository(db))
	marketHandler := market.NewHandler(market.NewClient(market.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, cfg.FXTimeout, deps.Rates))
	uploadHandler := upload.NewHandler(storage)

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(rate.Limit(1), 5)
	}
	requireUser := auth.JWTMiddleware(authService)

	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// websocket handshake carries its own token check
	r.Handle("/support-chat", support.NewGateway(chat, authService.Authenticate, cfg.AllowedOrigins))

	api := r.PathPrefix(apiPrefix).Subrouter()

	authR := api.PathPrefix("/auth").Subrouter()
	authR.Handle("/register", limiter.Limit(http.HandlerFunc(authHandler.Register))).Methods("POST")
	authR.Handle("/login", limiter.Limit(http.HandlerFunc(authHandler.Login))).Methods("POST")
	authR.Handle("/me", requireUser(http.HandlerFunc(authHandler.Me))).Methods("GET")

	api.HandleFunc("/plans", planHandler.ListPlans).Methods("GET")
	api.HandleFunc("/plans/{slug}", planHandler.GetPlan).Methods("GET")

	marketR := api.PathPrefix("/market").Subrouter()
	marketR.HandleFunc("/cryptos", marketHandler.ListCryptos).Methods("GET")
	marketR.HandleFunc("/global", marketHandler.Global).Methods("GET")
	marketR.HandleFunc("/trending", marketHandler.Trending).Methods("GET")
	marketR.HandleFunc("/history/{id}", marketHandler.History).Methods("GET")
	marketR.HandleFunc("/convert", marketHandler.Convert).Methods("GET")

	userR := api.PathPrefix("").Subrouter()
	userR.Use(requireUser)

	userR.HandleFunc("/wallet", walletHandler.GetWallet).Methods("GET")
	userR.HandleFunc("/wallet/transactions", walletHandler.GetTransactions).Methods("GET")
	userR.HandleFunc("/wallet/deposits", depositHandler.CreateDeposit).Methods("POST")
	userR.HandleFunc("/wallet/deposits", depositHandler.ListMyDeposits).Methods("GET")
	userR.HandleFunc("/wallet/withdrawals", withdrawalHandler.CreateWithdrawal).Methods("POST")
	userR.HandleFunc("/wallet/withdrawals", withdrawalHandler.ListMyWithdrawals).Methods("GET")

	userR.HandleFunc("/crypto-deposits/assets", cryptoHandler.ListAssets).Methods("GET")
	userR.HandleFunc("/crypto-deposits", cryptoHandler.CreateCryptoDeposit).Methods("POST")
	userR.HandleFunc("/crypto-deposits", cryptoHandler.ListMyCryptoDeposits).Methods("GET")
	userR.HandleFunc("/crypto-deposits/{id}", cryptoHandler.GetCryptoDeposit).Methods("GET")
	userR.Handle("/crypto-deposits/{id}/status", auth.RequireAdmin(http.HandlerFunc(cryptoHandler.UpdateStatus))).Methods("PATCH")

	userR.HandleFunc("/kyc", kycHandler.Submit).Methods("POST")
	userR.HandleFunc("/kyc", kycHandler.GetMine).Methods("GET")

	userR.HandleFunc("/support-chat/upload", uploadHandler.UploadImage(upload.AreaSupportChat)).Methods("POST")
	userR.HandleFunc("/uploads/deposits/{filename}", uploadHandler.Serve(upload.AreaDeposits)).Methods("GET")
	userR.HandleFunc("/uploads/support-chat/{filename}", uploadHandler.Serve(upload.AreaSupportChat)).Methods("GET")
	userR.Handle("/uploads/kyc/{filename}", auth.RequireAdmin(uploadHandler.Serve(upload.AreaKYC))).Methods("GET")

	adminR := api.PathPrefix("/admin").Subrouter()
	adminR.Use(requireUser, auth.RequireAdmin)

	adminR.HandleFunc("/deposits", depositHandler.AdminListDeposits).Methods("GET")
	adminR.HandleFunc("/deposits/{id}/approve", depositHandler.AdminApprove).Methods("POST")
	adminR.HandleFunc("/deposits/{id}/reject", depositHandler.AdminReject).Methods("POST")
	adminR.HandleFunc("/withdrawals", withdrawalHandler.AdminListWithdrawals).Methods("GET")
	adminR.HandleFunc("/withdrawals/{id}/approve", withdrawalHandler.AdminApprove).Methods("POST")
	adminR.HandleFunc("/withdrawals/{id}/reject", withdrawalHandler.AdminReject).Methods("POST")
	adminR.HandleFunc("/crypto-deposits", cryptoHandler.AdminListCryptoDeposits).Methods("GET")
	adminR.HandleFunc("/kyc", kycHandler.AdminList).Methods("GET")
	adminR.HandleFunc("/kyc/{id}/approve", kycHandler.AdminApprove).Methods("POST")
	adminR.HandleFunc("/kyc/{id}/reject", kycHandler.AdminReject).Methods("POST")
	adminR.HandleFunc("/wallets/{userId}/credit", walletHandler.AdminCredit).Methods("POST")

	if !cfg.IsProduction() {

		r.HandleFunc("/swagger.yaml", func(w http.ResponseWriter, r *http.Request) {
			content, err := os.ReadFile("docs/swagger.yaml")
			if err != nil {
				logger.Error("Failed to read swagger.yaml", logger.Fields{"error": err.Error()})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			modifiedContent := strings.ReplaceAll(string(content), "{{BASE_URL}}", apiPrefix)
			modifiedContent = strings.ReplaceAll(modifiedContent, "{{MIN_DEPOSIT_AMOUNT}}", cfg.MinDepositAmount.String())
			modifiedContent = strings.ReplaceAll(modifiedContent, "{{MIN_WITHDRAWAL_AMOUNT}}", cfg.MinWithdrawalAmount.String())

			w.Header().Set("Content-Type", "application/yaml")
			w.Write([]byte(modifiedContent))
		})

		r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
			httpSwagger.URL("/swagger.yaml"),
		))
		logger.Info("Swagger documentation enabled at /swagger/index.html")
	}

	corsObj := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)

	logger.Info("Routes registered", logger.Fields{"prefix": apiPrefix, "uploads": fmt.Sprintf("%s/uploads", apiPrefix)})
	return corsObj(r)
}

// Models lists every relational table the service owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&wallet.Wallet{},
		&wallet.Transaction{},
		&deposit.Deposit{},
		&withdrawal.Withdrawal{},
		&cryptodeposit.CryptoDeposit{},
		&kyc.Submission{},
		&plan.Plan{},
	}
}
