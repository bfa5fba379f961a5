package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
// Every component receives the paths it needs from here; nothing reads
// the environment on its own.
type App struct {
	Env      string
	HTTPPort string

	KnownFacesDir  string
	EncodingsFile  string
	AttendanceFile string
	UsersFile      string
	TokensFile     string
	QRCodesDir     string

	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration

	FaceServiceURL string
	FaceSkip       bool
	MatchThreshold float64

	CameraSnapshotURL string
	FrameInterval     time.Duration

	FirebaseCredentials string
	NotifyTopic         string

	LogFile string
}

// Load returns application config populated from environment variables with
// sensible defaults. A local .env file is honored when present.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:      getEnv("APP_ENV", "dev"),
		HTTPPort: getEnv("HTTP_PORT", "8081"),

		KnownFacesDir:  getEnv("KNOWN_FACES_DIR", "known_faces"),
		EncodingsFile:  getEnv("ENCODINGS_FILE", "encodings.gob"),
		AttendanceFile: getEnv("ATTENDANCE_FILE", "attendance.csv"),
		UsersFile:      getEnv("USERS_FILE", "users.csv"),
		TokensFile:     getEnv("TOKENS_FILE", "tokens.csv"),
		QRCodesDir:     getEnv("QR_CODES_DIR", "qr_codes"),

		JWTIssuer:     getEnv("JWT_ISSUER", "smartattend"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		SessionTTL:    durationEnv("SESSION_TTL", 12*time.Hour),

		FaceServiceURL: getEnv("FACE_SERVICE_URL", "http://localhost:8000"),
		FaceSkip:       boolEnv("FACE_SKIP", false),
		MatchThreshold: floatEnv("MATCH_THRESHOLD", 0.6),

		CameraSnapshotURL: getEnv("CAMERA_SNAPSHOT_URL", "http://localhost:8080/shot.jpg"),
		FrameInterval:     durationEnv("FRAME_INTERVAL", 200*time.Millisecond),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", "firebase_credentials.json"),
		NotifyTopic:         getEnv("NOTIFY_TOPIC", "attendance_notifications"),

		LogFile: getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var parsed float64
		if _, err := fmt.Sscanf(val, "%g", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid float for %s, using fallback %g", key, fallback)
	}
	return fallback
}
