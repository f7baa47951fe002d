package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-seats/internal/simulator"
)

// SimulatorControl is the admin surface of *simulator.Simulator.
type SimulatorControl interface {
	Start() error
	Stop()
	Running() bool
	ApplyScenario(sc simulator.Scenario) error
	SetSeatState(seatID string, state simulator.State) error
	Seats() []simulator.SimulatedSeat
}

// SimulatorHandler lets admins drive the embedded occupancy simulator.
type SimulatorHandler struct {
	Sim SimulatorControl
}

// NewSimulatorHandler panics when sim is nil.
func NewSimulatorHandler(sim SimulatorControl) *SimulatorHandler {
	if sim == nil {
		panic("nil simulator passed to NewSimulatorHandler")
	}
	return &SimulatorHandler{Sim: sim}
}

// Start handles POST /v1/simulator/start.
func (h *SimulatorHandler) Start(c echo.Context) error {
	if err := h.Sim.Start(); err != nil {
		return errorResponse(c, err, "failed to start simulator")
	}
	return c.JSON(http.StatusOK, echo.Map{"running": h.Sim.Running()})
}

// Stop handles POST /v1/simulator/stop.
func (h *SimulatorHandler) Stop(c echo.Context) error {
	h.Sim.Stop()
	return c.JSON(http.StatusOK, echo.Map{"running": h.Sim.Running()})
}

// Scenario handles POST /v1/simulator/scenario/:name.
func (h *SimulatorHandler) Scenario(c echo.Context) error {
	sc := simulator.Scenario(c.Param("name"))
	if err := h.Sim.ApplyScenario(sc); err != nil {
		return errorResponse(c, err, "failed to apply scenario")
	}
	return c.JSON(http.StatusOK, echo.Map{"scenario": sc, "items": h.Sim.Seats()})
}

// Override handles PUT /v1/simulator/seats/:id with body {"state": "..."}.
func (h *SimulatorHandler) Override(c echo.Context) error {
	var body struct {
		State simulator.State `json:"state"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Sim.SetSeatState(c.Param("id"), body.State); err != nil {
		return errorResponse(c, err, "failed to override seat")
	}
	return c.NoContent(http.StatusNoContent)
}

// Seats handles GET /v1/simulator/seats.
func (h *SimulatorHandler) Seats(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"running": h.Sim.Running(), "items": h.Sim.Seats()})
}
