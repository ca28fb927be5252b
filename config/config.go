package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	MongoURI     string
	DatabaseName string
	Port         string

	GeminiAPIKey string
	TextModel    string
	ImageModel   string

	AWSRegion      string
	AWSBucketName  string
	SendGridAPIKey string

	MidtransServerKey string
	MidtransEnv       string

	WelcomeCredits  int
	LowCreditsLevel int
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	MongoURI = os.Getenv("MONGO_URI")
	if MongoURI == "" {
		MongoURI = "mongodb://localhost:27017/"
	}

	DatabaseName = os.Getenv("MONGO_DATABASE")
	if DatabaseName == "" {
		DatabaseName = "nima"
	}

	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "8080"
	}

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	TextModel = os.Getenv("GEMINI_TEXT_MODEL")
	if TextModel == "" {
		TextModel = "gemini-1.5-flash"
	}

	ImageModel = os.Getenv("GEMINI_IMAGE_MODEL")
	if ImageModel == "" {
		ImageModel = "gemini-3-pro-image-preview"
	}

	AWSRegion = os.Getenv("AWS_REGION")
	if AWSRegion == "" {
		AWSRegion = "ap-south-1"
	}

	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")
	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")

	MidtransServerKey = os.Getenv("MIDTRANS_SERVER_KEY")
	MidtransEnv = os.Getenv("MIDTRANS_ENV")
	if MidtransEnv == "" {
		MidtransEnv = "sandbox"
	}

	WelcomeCredits = intEnv("WELCOME_CREDITS", 3)
	LowCreditsLevel = intEnv("LOW_CREDITS_LEVEL", 2)
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}
