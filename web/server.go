package web

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"payflo/db/db"
	"payflo/db/mem"
	"payflo/db/pg"
	"payflo/llm"
	"payflo/mq/gcppubsub"
	"payflo/mq/goch"
	mqt "payflo/mq/mq"
	"payflo/mq/rabbit"
)

type ServiceConfig struct {
	IsDev  bool
	Port   string
	MqMode mqt.Mode
}

func newStore(isDev bool) db.PayFloDBWrapper {
	if isDev {
		log.Println("Using in-memory store (dev mode)")
		return mem.NewInMemoryPayFloDBWrapper()
	}

	gormDB, err := pg.InitPostgresGORM(pg.CreateDSN())
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	return pg.NewGORMPayFloDBWrapper(gormDB)
}

func newMessageQueue(mode mqt.Mode) mqt.GroupMessageQueueWrapper {
	switch mode {
	case mqt.ModeRabbitMQ:
		conn := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL())
		wrapper, err := rabbit.NewRabbitGroupMessageQueueWrapper(conn)
		if err != nil {
			log.Fatalf("Failed to set up RabbitMQ queues: %v", err)
		}
		return wrapper
	case mqt.ModeGCPPubSub:
		wrapper, err := gcppubsub.NewGCPGroupMessageQueueWrapper(context.Background(), gcppubsub.GetGCPProjectID())
		if err != nil {
			log.Fatalf("Failed to set up GCP Pub/Sub queues: %v", err)
		}
		return wrapper
	default:
		return goch.NewGoChanGroupMessageQueueWrapper()
	}
}

func registerRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.GET("/users/:id/groups", h.GetUserGroups)
	r.GET("/users/:id/friends", h.GetFriends)
	r.POST("/users/:id/friends", h.AddFriend)

	r.POST("/groups", h.CreateGroup)
	r.GET("/groups/:id", h.GetGroup)
	r.PUT("/groups/:id", h.UpdateGroup)
	r.GET("/groups/by-invite-code/:code", h.GetGroupByInviteCode)
	r.POST("/groups/join", h.JoinGroup)
	r.GET("/groups/:id/expenses", h.GetGroupExpenses)
	r.GET("/groups/:id/settlement", h.GetGroupSettlement)

	r.POST("/expenses", h.CreateExpense)
	r.GET("/expenses/:id/items", h.GetExpenseItems)
	r.PUT("/bill-items/:id/assignments/toggle", h.ToggleAssignment)
	r.POST("/analyze-order", h.AnalyzeOrder)

	r.GET("/ws/groups/:id", h.GroupFeed)
}

func Serve(cfg ServiceConfig) {
	if !cfg.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	store := newStore(cfg.IsDev)
	queueWrapper := newMessageQueue(cfg.MqMode)
	handler := NewHandler(store, queueWrapper, llm.NewChatGPTClient())

	r := gin.New()
	setupMiddlewares(r, store)
	registerRoutes(r, handler)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}
}
