// Command campusauthd serves the campus auth API. All wiring comes from the
// environment; the process refuses to start when secrets or backends are
// missing rather than limping into per-request failures.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/campusnet/campusauth"
	"github.com/campusnet/campusauth/cookie"
	"github.com/campusnet/campusauth/httpapi"
	"github.com/campusnet/campusauth/internal/accounts"
)

func main() {
	addr := envOr("ADDR", ":8080")

	redisClient := redis.NewClient(&redis.Options{
		Addr: envOr("REDIS_ADDR", "localhost:6379"),
	})

	mongoClient, err := mongo.Connect(mongoopts.Client().
		ApplyURI(envOr("MONGO_URI", "mongodb://localhost:27017")))
	if err != nil {
		log.Fatal("campusauthd: mongo connect: ", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	store := accounts.New(mongoClient.Database(envOr("MONGO_DB", "campusnet")))
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureIndexes(ctx); err != nil {
			cancel()
			log.Fatal("campusauthd: ", err)
		}
		cancel()
	}

	cfg := campusauth.DefaultConfig()
	cfg.Token.AccessSecret = []byte(os.Getenv("ACCESS_TOKEN_SECRET"))
	cfg.Token.RefreshSecret = []byte(os.Getenv("REFRESH_TOKEN_SECRET"))
	cfg.Cookie.Production = os.Getenv("ENV") == "production"
	if v := os.Getenv("COOKIE_SAMESITE"); v != "" {
		cfg.Cookie.SameSite = v
	}
	cfg.Cookie.Domain = os.Getenv("COOKIE_DOMAIN")
	if v := os.Getenv("STUDENT_EMAIL_DOMAIN"); v != "" {
		cfg.Student.EmailDomain = v
	}

	engine, err := campusauth.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithAccounts(store).
		Build()
	if err != nil {
		log.Fatal("campusauthd: ", err)
	}

	policy := cookie.NewPolicy(cfg.Cookie)
	server := httpapi.New(engine, policy)

	log.Print("campusauthd: listening on ", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatal("campusauthd: ", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
