package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/gmsas95/dosetrack/internal/medication"
)

// httpError maps domain errors to status codes so handlers stay thin
func (s *Server) httpError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrMedicationNotFound),
		errors.Is(err, apperrors.ErrDoseNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDoseFinalized):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperrors.ErrEmptyName),
		errors.Is(err, apperrors.ErrEmptyDosage),
		errors.Is(err, apperrors.ErrNoReminderTimes),
		errors.Is(err, apperrors.ErrMedicationInvalid):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Error("Request failed",
		zap.Any("request_id", c.Locals("request_id")),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(500).JSON(fiber.Map{"error": "internal error"})
}

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	activeOnly := c.QueryBool("active", false)

	meds, err := s.coord.Medications(c.Context(), activeOnly)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	med := req.toMedication()
	if err := s.coord.AddMedication(c.Context(), med); err != nil {
		return s.httpError(c, err)
	}
	return c.Status(201).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid medication id"})
	}

	med, err := s.coord.Medication(c.Context(), int64(id))
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid medication id"})
	}

	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	med := req.toMedication()
	med.ID = int64(id)
	if err := s.coord.UpdateMedication(c.Context(), med); err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(med)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid medication id"})
	}

	if err := s.coord.DeleteMedication(c.Context(), int64(id)); err != nil {
		return s.httpError(c, err)
	}
	return c.SendStatus(204)
}

func (s *Server) handleMedicationHistory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid medication id"})
	}
	limit := c.QueryInt("limit", 30)

	history, err := s.coord.History(c.Context(), int64(id), limit)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(history)
}

func (s *Server) handleDosesToday(c *fiber.Ctx) error {
	date := time.Now().Format(medication.DateFormat)
	doses, err := s.coord.Ledger(c.Context(), date)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(doses)
}

func (s *Server) handleDosesForDate(c *fiber.Ctx) error {
	date := c.Params("date")
	if _, err := time.Parse(medication.DateFormat, date); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	doses, err := s.coord.Ledger(c.Context(), date)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(doses)
}

func (s *Server) handleTakeDose(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid dose id"})
	}

	if err := s.coord.MarkDoseTaken(c.Context(), int64(id)); err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(fiber.Map{"status": string(medication.StatusTaken)})
}

func (s *Server) handleSkipDose(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid dose id"})
	}

	if err := s.coord.MarkDoseSkipped(c.Context(), int64(id)); err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(fiber.Map{"status": string(medication.StatusSkipped)})
}

func (s *Server) handleAggregate(c *fiber.Ctx) error {
	date := c.Params("date")
	if date == "today" {
		date = time.Now().Format(medication.DateFormat)
	} else if _, err := time.Parse(medication.DateFormat, date); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	agg, err := s.coord.DailyAggregate(c.Context(), date)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(agg)
}
