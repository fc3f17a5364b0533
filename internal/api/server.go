// Package api exposes the vesting engine over HTTP.
package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"

	"solana-vesting/internal/auth"
	"solana-vesting/internal/observability"
	"solana-vesting/internal/vesting"
)

// Config for creating Server.
type Config struct {
	Engine *vesting.Engine

	// DevFaucet enables POST /v1/dev/token-accounts.
	DevFaucet bool

	// Now is the time used to check signature expiry. Defaults to the wall clock.
	Now func() int64

	Logger logrus.FieldLogger
}

// Server is the HTTP front of the vesting engine.
type Server struct {
	app       *fiber.App
	engine    *vesting.Engine
	devFaucet bool
	now       func() int64
	log       logrus.FieldLogger
}

// New creates a Server with all routes registered.
func New(cfg Config) *Server {
	s := &Server{
		engine:    cfg.Engine,
		devFaucet: cfg.DevFaucet,
		now:       cfg.Now,
		log:       cfg.Logger,
	}
	if s.now == nil {
		s.now = func() int64 { return time.Now().Unix() }
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "Solana Vesting API",
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("http server listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(observability.Handler()))

	v1 := s.app.Group("/v1", func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		c.Append("Server-Timing", fmt.Sprintf("app;dur=%v", time.Since(start).String()))
		return err
	})

	// schedules
	v1.Post("/schedules", s.createSchedule)
	v1.Get("/schedules/:address", s.getSchedule)
	v1.Get("/schedules/:address/preview", s.previewSchedule)
	v1.Get("/schedules/:address/claims", s.claimHistory)
	v1.Get("/schedules/:address/account", s.scheduleAccount)
	v1.Get("/lookup", s.lookupSchedule)

	// claims
	v1.Post("/claims", s.claimTokens)

	// dashboard
	v1.Get("/owners/:owner/schedules", s.ownerSchedules)
	v1.Get("/owners/:owner/stats", s.ownerStats)
	v1.Get("/mints/:mint/claimed", s.mintClaimed)

	if s.devFaucet {
		v1.Post("/dev/token-accounts", s.openTokenAccount)
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	apiErr := toError(err)
	entry := s.log.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": apiErr.Code,
	})
	if apiErr.Code >= fiber.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

func (s *Server) createSchedule(c *fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}

	fields := CreateFields(req.Beneficiary, req.Mint, req.SourceAccount, req.StartTime, req.EndTime, req.TotalAmount)
	signer, err := auth.Verify(auth.OpCreateSchedule, fields, req.Auth, s.now())
	if err != nil {
		return err
	}

	schedule, err := s.engine.CreateSchedule(c.UserContext(), signer, vesting.CreateParams{
		Beneficiary:   req.Beneficiary,
		Mint:          req.Mint,
		SourceAccount: req.SourceAccount,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newScheduleResponse(schedule))
}

func (s *Server) claimTokens(c *fiber.Ctx) error {
	var req ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}

	fields := ClaimFields(req.Beneficiary, req.Mint, req.ReceivingAccount)
	signer, err := auth.Verify(auth.OpClaim, fields, req.Auth, s.now())
	if err != nil {
		return err
	}

	res, err := s.engine.ClaimTokens(c.UserContext(), signer, vesting.ClaimParams{
		Beneficiary:      req.Beneficiary,
		Mint:             req.Mint,
		ReceivingAccount: req.ReceivingAccount,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(ClaimResponse{
		Schedule: newScheduleResponse(res.Schedule),
		Claim:    newClaimEventResponse(res.Event),
	})
}

func (s *Server) getSchedule(c *fiber.Ctx) error {
	schedule, err := s.engine.GetSchedule(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(newScheduleResponse(schedule))
}

func (s *Server) lookupSchedule(c *fiber.Ctx) error {
	authority, beneficiary, mint := c.Query("authority"), c.Query("beneficiary"), c.Query("mint")
	if authority == "" || beneficiary == "" || mint == "" {
		return badRequest("authority, beneficiary and mint are required")
	}

	schedule, err := s.engine.LookupSchedule(c.UserContext(), authority, beneficiary, mint)
	if err != nil {
		return err
	}
	return c.JSON(newScheduleResponse(schedule))
}

func (s *Server) previewSchedule(c *fiber.Ctx) error {
	preview, err := s.engine.Preview(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(newPreviewResponse(preview))
}

func (s *Server) claimHistory(c *fiber.Ctx) error {
	events, err := s.engine.ClaimHistory(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}

	out := make([]ClaimEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, newClaimEventResponse(e))
	}
	return c.JSON(out)
}

func (s *Server) scheduleAccount(c *fiber.Ctx) error {
	address := c.Params("address")
	data, err := s.engine.ScheduleAccount(c.UserContext(), address)
	if err != nil {
		return err
	}
	return c.JSON(AccountResponse{
		Address:  address,
		Size:     len(data),
		Encoding: "base64",
		Data:     base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) ownerSchedules(c *fiber.Ctx) error {
	list, err := s.engine.SchedulesFor(c.UserContext(), c.Params("owner"))
	if err != nil {
		return err
	}
	return c.JSON(newScheduleList(list))
}

func (s *Server) ownerStats(c *fiber.Ctx) error {
	stats, err := s.engine.Stats(c.UserContext(), c.Params("owner"))
	if err != nil {
		return err
	}
	return c.JSON(newStatsResponse(stats))
}

func (s *Server) mintClaimed(c *fiber.Ctx) error {
	mint := c.Params("mint")
	total, err := s.engine.MintClaimedTotal(c.UserContext(), mint)
	if err != nil {
		return err
	}
	return c.JSON(MintClaimedResponse{Mint: mint, TotalClaimed: total})
}

func (s *Server) openTokenAccount(c *fiber.Ctx) error {
	var req OpenTokenAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid body: %v", err)
	}

	acct, err := s.engine.OpenTokenAccount(c.UserContext(), vesting.OpenAccountParams{
		Address: req.Address,
		Owner:   req.Owner,
		Mint:    req.Mint,
		Amount:  req.Amount,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(TokenAccountResponse{
		Address: acct.Address,
		Owner:   acct.Owner,
		Mint:    acct.Mint,
		Amount:  acct.Amount,
	})
}
