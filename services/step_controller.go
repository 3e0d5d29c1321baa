package services

import (
	"errors"
	"fmt"

	"checkout-service/models"
)

var ErrInvalidStep = errors.New("invalid checkout step")

// StepController tracks which of the three checkout steps is active. The
// step is always within [StepCart, StepPayment]. It is not safe for
// concurrent use; each session owns one.
type StepController struct {
	step models.Step
}

// NewStepController starts at initial, or at the cart step when initial is
// out of range.
func NewStepController(initial models.Step) *StepController {
	if !initial.Valid() {
		initial = models.StepCart
	}
	return &StepController{step: initial}
}

func (c *StepController) Step() models.Step {
	return c.step
}

func (c *StepController) NextStep() models.Step {
	if c.step < models.StepPayment {
		c.step++
	}
	return c.step
}

func (c *StepController) PrevStep() models.Step {
	if c.step > models.StepCart {
		c.step--
	}
	return c.step
}

// GoToStep jumps to n. Out-of-range values are rejected and the current
// step is kept.
func (c *StepController) GoToStep(n int) error {
	step := models.Step(n)
	if !step.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStep, n)
	}
	c.step = step
	return nil
}
