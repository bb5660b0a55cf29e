package main

import (
	"context"
	"fmt"
	"log"

	"receiptradar-backend/cmd/api"
	authdomain "receiptradar-backend/internal/auth/domain"
	authrepo "receiptradar-backend/internal/auth/repository"
	authUsecase "receiptradar-backend/internal/auth/usecase"
	"receiptradar-backend/internal/notification"
	purchaseDelivery "receiptradar-backend/internal/purchase/delivery"
	purchasedomain "receiptradar-backend/internal/purchase/domain"
	purchaserepo "receiptradar-backend/internal/purchase/repository"
	"receiptradar-backend/internal/purchase/scheduler"
	purchaseUsecase "receiptradar-backend/internal/purchase/usecase"
	"receiptradar-backend/pkg/ai"
	"receiptradar-backend/pkg/config"
	"receiptradar-backend/pkg/database"
	"receiptradar-backend/pkg/fcm"
	"receiptradar-backend/pkg/gmail"
	"receiptradar-backend/pkg/imap"
)

func main() {
	cfg := config.Load()
	cfg.MustValidate()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
		&purchasedomain.Evidence{},
		&purchasedomain.PurchaseDraft{},
		&purchasedomain.PackagePreAlert{},
		&purchasedomain.SyncState{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	fcmRepo := authrepo.NewFCMTokenRepository(db)
	evidenceRepo := purchaserepo.NewEvidenceRepository(db)
	draftRepo := purchaserepo.NewDraftRepository(db)
	preAlertRepo := purchaserepo.NewPreAlertRepository(db)
	syncStateRepo := purchaserepo.NewSyncStateRepository(db)

	// Push notifications. The pipeline degrades gracefully without FCM.
	var pushClient purchaseUsecase.PushClient
	fcmClient, err := fcm.NewClient(cfg.FirebaseCredentials)
	if err != nil {
		log.Printf("Warning: FCM client unavailable, pre-alert notifications disabled: %v", err)
	} else {
		pushClient = fcmClient
	}

	// Mail providers per channel
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	providers := map[string]purchasedomain.MessageProvider{
		purchasedomain.ChannelGmail: gmailService,
		purchasedomain.ChannelIMAP:  imap.NewService(cfg.SyncLookbackDays),
	}

	// Mailbox watch registration on token push, when Pub/Sub is configured.
	var watcher authUsecase.MailboxWatcher
	watchTopic := ""
	if cfg.GoogleProjectID != "" {
		watcher = gmailService
		watchTopic = fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, cfg.GooglePubSubTopic)
	}

	// Extraction: Gemini primary model with fallback model
	geminiClient := ai.NewGeminiClient(cfg.GeminiApiKey)
	extractor := ai.NewFallbackExtractor(geminiClient, cfg.GeminiPrimaryModel, cfg.GeminiFallbackModel)

	// Usecases
	authUc := authUsecase.NewAuthUsecase(userRepo, fcmRepo, watcher, watchTopic, cfg)
	matcher := purchaseUsecase.NewDraftMatcher(draftRepo, preAlertRepo, fcmRepo, pushClient)
	purchaseUc := purchaseUsecase.NewPurchaseUsecase(
		userRepo, evidenceRepo, draftRepo, preAlertRepo, syncStateRepo,
		providers, extractor, matcher, cfg,
	)

	// Gmail push notifications via Pub/Sub
	if cfg.GoogleProjectID != "" {
		notificationService, err := notification.NewService(
			cfg.GoogleProjectID, cfg.GooglePubSubTopic, userRepo, purchaseUc, cfg.GoogleCredentials,
		)
		if err != nil {
			log.Printf("Warning: Pub/Sub notification service unavailable: %v", err)
		} else {
			go notificationService.Start(context.Background())
		}
	} else {
		log.Println("Warning: GOOGLE_PROJECT_ID not set, mailbox push notifications disabled")
	}

	// Catch-up sync scheduler
	syncScheduler := scheduler.NewSyncScheduler(userRepo, purchaseUc, cfg.SyncIntervalMinutes)
	syncScheduler.Start()
	defer syncScheduler.Stop()

	purchaseHandler := purchaseDelivery.NewPurchaseHandler(purchaseUc, userRepo)
	handler := api.NewHandler(authUc, purchaseHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
