package web

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"payflo/db/db"
)

func CorsConfig() cors.Config {
	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConf.AllowCredentials = true
	corsConf.MaxAge = 1 * 3600 // 1 hours
	return corsConf
}

func limiterMiddleWare() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Hour,
		Limit:  1000, // 1000 requests per hour,
	}
	store := memory.NewStore()
	instance := limiter.New(store, rate)
	middleware := mgin.NewMiddleware(instance)

	return middleware
}

// GroupDataLoaderInjectionMiddleware gives every request a fresh dataloader,
// so batching and caching stay request scoped.
func GroupDataLoaderInjectionMiddleware(wrapper db.PayFloDBWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := db.NewGroupDataLoader(wrapper)
		c.Set(string(db.DataLoaderKeyGroupData), loader)
		c.Next()
	}
}

func setupMiddlewares(r *gin.Engine, wrapper db.PayFloDBWrapper) {
	r.Use(limiterMiddleWare())
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(cors.New(CorsConfig()))
	// The websocket feed hijacks the connection, keep it out of gzip.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{"^/ws/"})))
	r.Use(secure.New(secure.Config{
		STSSeconds:           31536000, // 1 year
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
	}))
	r.Use(GroupDataLoaderInjectionMiddleware(wrapper))
}
