package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	"app/internal/infra/mail"
	"app/internal/infra/paystack"
	infraRepo "app/internal/infra/repository"
	"app/internal/logging"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	//.envは無ければ環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.Init("pharmacy-api", "./logs/app.log")

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Drug{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//外部コラボレーター
	gateway := paystack.NewClient(cfg)

	var mailer usecase.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(cfg)
	} else {
		log.Warn("SMTP not configured, order confirmation mail disabled")
	}

	//Usecase生成
	identity := usecase.NewIdentityResolver(userRepo)
	paymentUC := usecase.NewPaymentUsecase(txManager, orderRepo, gateway, identity, mailer)
	orderUC := usecase.NewOrderUsecase(txManager)

	//Handler生成
	paymentH := handler.NewPaymentHandler(paymentUC, gateway.PublicKey())
	orderH := handler.NewOrderHandler(orderUC)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	e := server.New(cfg, paymentH, orderH)
	log.Info("starting server", "addr", addr, "env", cfg.GoEnv)
	if err := server.Run(e, addr); err != nil {
		panic(err)
	}
}
