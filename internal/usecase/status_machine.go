// File: internal/usecase/status_machine.go
package usecase

import (
	"fmt"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
)

// CheckTransition validates a pipeline-driven move of an application's status.
//
// Moves go forward along the canonical path or to a side exit. Repeating the current status is
// allowed and reported as unchanged. Terminal applications never move.
func CheckTransition(from, to model.ApplicationStatus) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	if from.IsTerminal() {
		return false, fmt.Errorf("%w: %s", domain.ErrApplicationClosed, from)
	}
	if to.IsSideExit() {
		return true, nil
	}
	if to.Rank() < 0 || from.Rank() < 0 || to.Rank() < from.Rank() {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	return true, nil
}

// RunningStatus is the status an application takes while a job of this type runs, if any.
func RunningStatus(t model.JobType) (model.ApplicationStatus, bool) {
	if t == model.JobTypeAnalyze {
		return model.AppStatusAnalyzing, true
	}
	return "", false
}
