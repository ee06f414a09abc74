package workflows

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"postpilot/services"
	"postpilot/store"
	"postpilot/textproc"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"
)

// TextTurnWorkflow is the durable form of TextTurn. Generation and
// persistence run as separate checkpointed steps with no automatic step
// retries; a crash between them resumes without re-calling the upstream,
// and a generation failure ends the workflow before any write.
func (w *TurnWorkflows) TextTurnWorkflow(ctx dbos.DBOSContext, input TextTurnInput) (TextTurnOutput, error) {
	raw, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (string, error) {
		return w.generateText(stepCtx, input)
	})
	if err != nil {
		return TextTurnOutput{}, err
	}

	refined := textproc.Refine(raw, input.WordCount)

	convID, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (uuid.UUID, error) {
		return w.persistPair(stepCtx, input.ConversationID, input.UserID, input.Platform, textTurnPair(input.UserMessage, refined.Text))
	})
	if err != nil {
		return TextTurnOutput{}, err
	}

	return TextTurnOutput{
		GeneratedText:  refined.Text,
		ConversationID: convID,
		IsComplete:     refined.Complete,
	}, nil
}

// ImageTurnWorkflow is the durable form of ImageTurn.
func (w *TurnWorkflows) ImageTurnWorkflow(ctx dbos.DBOSContext, input ImageTurnInput) (ImageTurnOutput, error) {
	dataURI, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (string, error) {
		return w.generateImage(stepCtx, input)
	})
	if err != nil {
		return ImageTurnOutput{}, err
	}

	convID, err := dbos.RunAsStep(ctx, func(stepCtx context.Context) (uuid.UUID, error) {
		return w.persistPair(stepCtx, input.ConversationID, input.UserID, input.Platform, imageTurnPair(input.Prompt, dataURI))
	})
	if err != nil {
		return ImageTurnOutput{}, err
	}

	return ImageTurnOutput{
		ImageDataURI:   dataURI,
		ConversationID: convID,
	}, nil
}

// AddMessageWorkflow is the durable form of AddMessage.
func (w *TurnWorkflows) AddMessageWorkflow(ctx dbos.DBOSContext, input AddMessageInput) (bool, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (bool, error) {
		if err := w.AddMessage(stepCtx, input); err != nil {
			return false, err
		}
		return true, nil
	})
}

// DurableOrchestrator runs turns as DBOS workflows so an interrupted turn
// resumes from its last completed step after a restart.
type DurableOrchestrator struct {
	dbosCtx dbos.DBOSContext
	wf      *TurnWorkflows
}

// NewDurableOrchestrator wraps wf with durable execution. The workflow
// methods must already be registered on dbosCtx.
func NewDurableOrchestrator(dbosCtx dbos.DBOSContext, wf *TurnWorkflows) *DurableOrchestrator {
	return &DurableOrchestrator{dbosCtx: dbosCtx, wf: wf}
}

// Register registers the turn workflows with DBOS. Must be called before
// dbos.Launch.
func Register(dbosCtx dbos.DBOSContext, wf *TurnWorkflows) {
	dbos.RegisterWorkflow(dbosCtx, wf.TextTurnWorkflow)
	dbos.RegisterWorkflow(dbosCtx, wf.ImageTurnWorkflow)
	dbos.RegisterWorkflow(dbosCtx, wf.AddMessageWorkflow)
}

func (o *DurableOrchestrator) TextTurn(ctx context.Context, input TextTurnInput) (TextTurnOutput, error) {
	handle, err := dbos.RunWorkflow(o.dbosCtx, o.wf.TextTurnWorkflow, input)
	if err != nil {
		return TextTurnOutput{}, err
	}
	out, err := handle.GetResult()
	return out, restoreErrorClass(err)
}

func (o *DurableOrchestrator) ImageTurn(ctx context.Context, input ImageTurnInput) (ImageTurnOutput, error) {
	handle, err := dbos.RunWorkflow(o.dbosCtx, o.wf.ImageTurnWorkflow, input)
	if err != nil {
		return ImageTurnOutput{}, err
	}
	out, err := handle.GetResult()
	return out, restoreErrorClass(err)
}

func (o *DurableOrchestrator) AddMessage(ctx context.Context, input AddMessageInput) error {
	handle, err := dbos.RunWorkflow(o.dbosCtx, o.wf.AddMessageWorkflow, input)
	if err != nil {
		return err
	}
	_, err = handle.GetResult()
	return restoreErrorClass(err)
}

var upstreamStatusRe = regexp.MustCompile(`upstream error \(status (\d+)\): (.*)`)

// restoreErrorClass rebuilds sentinel and typed errors on results that
// crossed the durable execution boundary, where serialization can flatten
// an error chain to its message string. Errors that still carry their
// identity pass through untouched.
func restoreErrorClass(err error) error {
	if err == nil {
		return nil
	}
	var upstreamErr *services.UpstreamError
	if errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, services.ErrUpstreamUnavailable) ||
		errors.As(err, &upstreamErr) {
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, store.ErrNotFound.Error()) {
		return store.ErrNotFound
	}
	if m := upstreamStatusRe.FindStringSubmatch(msg); m != nil {
		status, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return &services.UpstreamError{StatusCode: status, Body: m[2]}
		}
	}
	if strings.Contains(msg, services.ErrUpstreamUnavailable.Error()) {
		return fmt.Errorf("%w%s", services.ErrUpstreamUnavailable,
			strings.TrimPrefix(msg, services.ErrUpstreamUnavailable.Error()))
	}
	return err
}
