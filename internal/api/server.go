// Package api exposes the coordination engines over JSON/HTTP with echo.
// Every route except /healthz requires a bearer JWT whose subject is a known
// actor. Responses use one envelope:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": "conflict", "message": "..."}
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/booking"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/negotiation"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/payment"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/sharing"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/visit"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

// Deps are the engines and settings the server routes to.
type Deps struct {
	Client       *market.Client
	Actors       directory.Actors
	Registry     *sharing.Registry
	Matcher      *sharing.Matcher
	Negotiations *negotiation.Engine
	Ledger       *booking.Ledger
	Visits       *visit.Scheduler
	Payments     *payment.Authority
	Clock        clock.Clock
	JWTSecret    string
	Location     *time.Location // calendar dates in requests; nil means UTC
	AccessLog    bool
}

// Server is the HTTP front of the marketplace engine.
type Server struct {
	Deps
	echo *echo.Echo
}

// New builds the echo instance and registers every route.
func New(d Deps) (*Server, error) {
	if d.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	s := &Server{Deps: d, echo: e}
	e.HTTPErrorHandler = s.handleError

	if d.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", s.healthz)

	g := e.Group("", s.authenticate)

	g.POST("/room-sharing", s.createListing)
	g.GET("/room-sharing", s.listListings)
	g.GET("/room-sharing/:id", s.getListing)
	g.POST("/room-sharing/:id/apply", s.applyToListing)
	g.GET("/room-sharing/:id/applications", s.listApplications)
	g.PUT("/room-sharing/:id/respond", s.respondToApplication)
	g.PUT("/room-sharing/:id/close", s.closeListing)
	g.PUT("/room-sharing/:id/expire", s.expireListing)
	g.GET("/applications/:id", s.getApplication)
	g.PUT("/applications/:id/withdraw", s.withdrawApplication)

	g.POST("/negotiations", s.proposeNegotiation)
	g.GET("/negotiations", s.listNegotiations)
	g.GET("/negotiations/:id", s.getNegotiation)
	g.PUT("/negotiations/:id/respond", s.respondToNegotiation)

	g.POST("/bookings", s.createBooking)
	g.GET("/bookings", s.listBookings)
	g.GET("/bookings/:id", s.getBooking)
	g.PUT("/bookings/:id/respond", s.respondToBooking)
	g.PUT("/bookings/:id/cancel", s.cancelBooking)

	g.POST("/payments/orders", s.createPaymentOrder)
	g.POST("/payments/verify", s.verifyPayment)

	g.POST("/visit-requests", s.requestVisit)
	g.GET("/visit-requests", s.listVisits)
	g.GET("/visit-requests/:id", s.getVisit)
	g.PUT("/visit-requests/:id/respond", s.respondToVisit)
	g.PUT("/visit-requests/:id/reschedule-response", s.answerReschedule)
	g.PUT("/visit-requests/:id/cancel", s.cancelVisit)
}

// ServeHTTP makes the server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.Client.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{
			Error:   "unavailable",
			Message: "store unreachable",
		})
	}
	return ok(c, http.StatusOK, map[string]string{
		"status":   "ok",
		"instance": s.Client.InstanceName(),
	})
}
