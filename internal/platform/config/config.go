package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// StoreBackend selects the job record store: "redis" or "postgres".
	StoreBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	QueueConcurrency int

	// ProvisionalStationCount seeds TotalUnits at job creation; the dispatcher
	// overwrites it with the count actually fetched from the feed.
	ProvisionalStationCount int
	StationLimit            int
	BuienradarAPIURL        string
	PixabayAPIURL           string
	PixabayAPIKey           string

	ArtifactDir       string
	ArtifactBaseURL   string
	ArtifactURLSecret string
	ArtifactURLTTL    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:                 getEnv("API_PORT", "8080"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvAsInt("REDIS_DB", 0),
		StoreBackend:            getEnv("JOB_STORE_BACKEND", "redis"),
		DBHost:                  getEnv("DB_HOST", "localhost"),
		DBPort:                  getEnv("DB_PORT", "5432"),
		DBUser:                  getEnv("DB_USER", "user"),
		DBPassword:              getEnv("DB_PASSWORD", "password"),
		DBName:                  getEnv("DB_NAME", "weathergen_db"),
		DBSslMode:               getEnv("DB_SSLMODE", "disable"),
		QueueConcurrency:        getEnvAsInt("QUEUE_CONCURRENCY", 10),
		ProvisionalStationCount: getEnvAsInt("PROVISIONAL_STATION_COUNT", 50),
		StationLimit:            getEnvAsInt("STATION_LIMIT", 50),
		BuienradarAPIURL:        getEnv("BUIENRADAR_API_URL", "https://data.buienradar.nl/2.0/feed/json"),
		PixabayAPIURL:           getEnv("PIXABAY_API_URL", "https://pixabay.com/api/"),
		PixabayAPIKey:           getEnv("PIXABAY_API_KEY", ""),
		ArtifactDir:             getEnv("ARTIFACT_DIR", "./artifacts"),
		ArtifactBaseURL:         getEnv("ARTIFACT_BASE_URL", "http://localhost:8080"),
		ArtifactURLSecret:       getEnv("ARTIFACT_URL_SECRET", "dev-only-signing-secret"),
		ArtifactURLTTL:          time.Duration(getEnvAsInt("ARTIFACT_URL_TTL_MINUTES", 60)) * time.Minute,
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
