package main

import (
	"log"
	"net/http"

	"github.com/nimastyle/nima-backend/api"
	"github.com/nimastyle/nima-backend/config"
	"github.com/nimastyle/nima-backend/credits"
	"github.com/nimastyle/nima-backend/generation"
	"github.com/nimastyle/nima-backend/looks"
	"github.com/nimastyle/nima-backend/notify"
	"github.com/nimastyle/nima-backend/ratelimit"
	"github.com/nimastyle/nima-backend/stylist"
	"github.com/nimastyle/nima-backend/utils"
)

func main() {
	config.LoadConfig()

	if err := utils.ConnectMongo(config.MongoURI); err != nil {
		log.Fatalf("MongoDB connection failed: %v", err)
	}
	if err := utils.InitS3(); err != nil {
		log.Fatalf("S3 initialization failed: %v", err)
	}

	notifier := notify.NewSender(
		utils.GetCollection(utils.ColNotifications),
		utils.GetCollection(utils.ColUsers),
		utils.SendEmail,
	)

	ledger := credits.NewLedger(
		credits.NewMongoBalances(utils.GetCollection(utils.ColUsers)),
		credits.NewMongoHistory(utils.GetCollection(utils.ColCreditHistory)),
		notifier,
		config.LowCreditsLevel,
	)
	purchases := credits.NewPurchases(
		utils.GetCollection(utils.ColPurchases),
		ledger,
		credits.NewMidtransGateway(config.MidtransServerKey, config.MidtransEnv),
	)

	catalog := stylist.NewMongoCatalog(utils.GetCollection(utils.ColItems))
	lookStore := looks.NewStore(
		utils.GetCollection(utils.ColLooks),
		utils.GetCollection(utils.ColLookImages),
		notifier,
	)
	tryOnStore := looks.NewTryOnStore(utils.GetCollection(utils.ColTryOns), notifier)

	blobs := &utils.S3Blobs{Prefix: "generated_images"}
	textGen := utils.NewGeminiText()
	orchestrator := &generation.Orchestrator{
		Text:   textGen,
		Images: utils.NewGeminiImage(),
		Blobs:  blobs,
		Users:  generation.NewMongoUsers(utils.GetCollection(utils.ColUsers)),
		Items:  catalog,
	}

	server := &api.Server{
		Matcher:      stylist.NewMatcher(catalog),
		Catalog:      catalog,
		Looks:        lookStore,
		TryOns:       tryOnStore,
		Ledger:       ledger,
		History:      credits.NewMongoHistory(utils.GetCollection(utils.ColCreditHistory)),
		Purchases:    purchases,
		Orchestrator: orchestrator,
		Scheduler:    &generation.GoScheduler{},
		Limiter:      ratelimit.NewMongoLimiter(utils.GetCollection(utils.ColRateCounters)),
		Text:         textGen,
		Blobs:        blobs,
		ProfileLocks: utils.NewKeyedLock(),
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	handler := utils.CORSMiddleware(utils.LatencyMiddleware(mux))

	log.Printf("Nima backend listening on port %s", config.Port)
	if err := http.ListenAndServe(":"+config.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
