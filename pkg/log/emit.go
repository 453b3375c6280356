package log

import "time"

// StateChange logs a state transition if l is non-nil.
func StateChange(l Logger, sessionID string, entity StateEntity, oldState, newState, reason string) {
	if l == nil {
		return
	}
	l.Log(Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Layer:     LayerScan,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error logs an error event if l is non-nil.
func Error(l Logger, sessionID string, layer Layer, err error, context string) {
	if l == nil || err == nil {
		return
	}
	l.Log(Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
