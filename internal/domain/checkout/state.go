package checkout

// transactionState implements the state pattern for the checkout lifecycle.
// The happy path is linear; declines loop back to user confirmation, and any
// non-terminal state can fail.
type transactionState interface {
	Status() Status
	OnPaymentPrepared(t *Transaction) (transactionState, error)
	OnDetailsSubmitted(t *Transaction) (transactionState, error)
	OnProcessorSucceeded(t *Transaction) (transactionState, error)
	OnProcessorDeclined(t *Transaction, reason string) (transactionState, error)
	OnRecorded(t *Transaction) (transactionState, error)
	OnFailed(t *Transaction, reason string) (transactionState, error)
}

// failable supplies the transition every non-terminal state shares.
type failable struct{}

func (failable) OnFailed(t *Transaction, reason string) (transactionState, error) {
	t.FailureReason = reason
	return failedState{}, nil
}

type awaitingPaymentSetupState struct{ failable }

func (awaitingPaymentSetupState) Status() Status { return StatusAwaitingPaymentSetup }

func (awaitingPaymentSetupState) OnPaymentPrepared(t *Transaction) (transactionState, error) {
	return awaitingUserConfirmationState{}, nil
}

func (awaitingPaymentSetupState) OnDetailsSubmitted(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingPaymentSetupState) OnProcessorSucceeded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingPaymentSetupState) OnProcessorDeclined(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingPaymentSetupState) OnRecorded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

type awaitingUserConfirmationState struct{ failable }

func (awaitingUserConfirmationState) Status() Status { return StatusAwaitingUserConfirmation }

func (awaitingUserConfirmationState) OnPaymentPrepared(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingUserConfirmationState) OnDetailsSubmitted(t *Transaction) (transactionState, error) {
	t.FailureReason = ""
	return confirmingPaymentState{}, nil
}

func (awaitingUserConfirmationState) OnProcessorSucceeded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingUserConfirmationState) OnProcessorDeclined(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingUserConfirmationState) OnRecorded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

type confirmingPaymentState struct{ failable }

func (confirmingPaymentState) Status() Status { return StatusConfirmingPayment }

func (confirmingPaymentState) OnPaymentPrepared(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (confirmingPaymentState) OnDetailsSubmitted(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (confirmingPaymentState) OnProcessorSucceeded(t *Transaction) (transactionState, error) {
	t.FailureReason = ""
	return recordingOrderState{}, nil
}

// A decline returns to user confirmation with the form intact.
func (confirmingPaymentState) OnProcessorDeclined(t *Transaction, reason string) (transactionState, error) {
	t.FailureReason = reason
	return awaitingUserConfirmationState{}, nil
}

func (confirmingPaymentState) OnRecorded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

type recordingOrderState struct{}

func (recordingOrderState) Status() Status { return StatusRecordingOrder }

func (recordingOrderState) OnPaymentPrepared(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (recordingOrderState) OnDetailsSubmitted(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (recordingOrderState) OnProcessorSucceeded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (recordingOrderState) OnProcessorDeclined(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (recordingOrderState) OnRecorded(*Transaction) (transactionState, error) {
	return completedState{}, nil
}

// Once the processor has confirmed, the money has moved: bookkeeping faults
// must not fail the transaction from the shopper's perspective.
func (recordingOrderState) OnFailed(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) OnPaymentPrepared(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnDetailsSubmitted(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnProcessorSucceeded(*Transaction) (transactionState, error) {
	return completedState{}, nil
}

func (completedState) OnProcessorDeclined(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (completedState) OnRecorded(*Transaction) (transactionState, error) {
	return completedState{}, nil
}

func (completedState) OnFailed(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

type failedState struct{}

func (failedState) Status() Status { return StatusFailed }

func (failedState) OnPaymentPrepared(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnDetailsSubmitted(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnProcessorSucceeded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnProcessorDeclined(*Transaction, string) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnRecorded(*Transaction) (transactionState, error) {
	return nil, ErrInvalidStateTransition
}

func (failedState) OnFailed(t *Transaction, reason string) (transactionState, error) {
	t.FailureReason = reason
	return failedState{}, nil
}
