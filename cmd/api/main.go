package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tidycrew/fieldops-backend-go/internal/config"
	appHTTP "github.com/tidycrew/fieldops-backend-go/internal/handler/http"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/cron"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/database"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/geocode"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/jwt"
	"github.com/tidycrew/fieldops-backend-go/internal/pkg/sse"
	"github.com/tidycrew/fieldops-backend-go/internal/repository/postgresql"
	attendanceService "github.com/tidycrew/fieldops-backend-go/internal/service/attendance"
	"github.com/tidycrew/fieldops-backend-go/internal/service/location"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	siteRepo := postgresql.NewSiteRepository(db)
	shiftRepo := postgresql.NewShiftRepository(db)

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	hub := sse.NewHub()
	geocoder := geocode.NewNominatimClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent)
	locationFeed := location.NewFeed(cfg.Geofence.MaxFixAge)

	manager := attendanceService.NewManager(
		attendanceRepo,
		shiftRepo,
		siteRepo,
		geocoder,
		locationFeed,
		hub,
		attendanceService.SessionConfig{
			EarlyWindow:       cfg.Geofence.EarlyWindow,
			DefaultRadiusFeet: cfg.Geofence.RadiusFeet,
			WatchOpts: location.WatchOptions{
				MinDistanceMeters: cfg.Geofence.MinMoveMeters,
				MinInterval:       cfg.Geofence.MinUpdateInterval,
			},
		},
	)

	scheduler := cron.NewScheduler()
	attendanceJobs := cron.NewAttendanceJobs(
		attendanceRepo,
		shiftRepo,
		hub,
		db,
		postgresql.WithTransaction,
		cfg.Geofence.StaleSessionMaxAge,
		cfg.Geofence.StaleSweepInterval,
	)
	attendanceJobs.RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	authHandler := appHTTP.NewAuthHandler(jwtService, cfg.JWT.ProvisionKey)
	attendanceHandler := appHTTP.NewAttendanceHandler(manager, attendanceRepo)
	locationHandler := appHTTP.NewLocationHandler(locationFeed)
	streamHandler := appHTTP.NewStreamHandler(jwtService, hub)

	router := appHTTP.NewRouter(
		jwtService,
		cfg.App.Env,
		cfg.App.AllowedOrigins,
		authHandler,
		attendanceHandler,
		locationHandler,
		streamHandler,
	)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	server := &http.Server{
		Addr:              port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		fmt.Println("Server error:", err)
	}
}
