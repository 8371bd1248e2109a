package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TurnMatch/config"
	"TurnMatch/internal/auth"
	"TurnMatch/internal/game/manager"
	"TurnMatch/internal/matchmaker"
	"TurnMatch/internal/middleware"
	"TurnMatch/internal/storage"
	"TurnMatch/internal/utils"
	"TurnMatch/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.Load()
	utils.Init(config.C.Log.Level)
	logger := utils.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 初始化 Redis
	//-------------------------------------------------------
	if err := storage.InitRedis(ctx,
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		logger.Fatal("Redis init failed", "addr", config.C.Redis.Addr, "err", err)
	}
	defer storage.CloseRedis()

	//-------------------------------------------------------
	// 2. 初始化 Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	//-------------------------------------------------------
	// 3. 初始化 Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()

	//-------------------------------------------------------
	// 4. 匹配平台：会话来自登录，对局存 Redis
	//-------------------------------------------------------
	sessions := auth.NewRedisStore(storage.Rdb)
	svc := matchmaker.NewService(matchmaker.NewRedisRepo(storage.Rdb), sessions, &matchmaker.Options{
		Pool:         config.C.Matchmaking.Pool,
		MaxSupported: config.C.Matchmaking.MaxSupported,
		PlayerTTL:    config.C.Matchmaking.PlayerTTL,
	})

	//-------------------------------------------------------
	// 5. GameManager：每个玩家一个 launcher
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(hub, svc)
	hub.OnIncoming = gameMgr.HandlePlayerMessage
	hub.OnUnregister = gameMgr.Disconnect
	hub.OnReplace = gameMgr.Replaced
	go hub.Run()

	secret := []byte(config.C.JWT.Secret)
	ttl := time.Duration(config.C.JWT.TTL) * time.Second

	ah := auth.NewHandler(sessions, secret, ttl, utils.Named("auth"))
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/nonce", ah.Nonce)
		authGroup.POST("/login", ah.Login)
	}

	//-------------------------------------------------------
	// 6. 需要 JWT 的路由
	//-------------------------------------------------------
	protected := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		protected.POST("/auth/logout", ah.Logout)
		protected.GET("/ws", websocket.ServeWS(hub))

		mh := matchmaker.NewHandler(svc)
		protected.POST("/match/start", gameMgr.StartHandler)
		protected.GET("/match/list", mh.List)
		protected.GET("/match/:id", mh.Get)
	}

	//-------------------------------------------------------
	// 7. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{
		Addr:    config.C.Server.Port,
		Handler: r,
	}
	go func() {
		logger.Info("Server running", "addr", config.C.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	hub.Close()
}
