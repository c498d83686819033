package classifier

import "fmt"

// NoDataError reports that an organization has zero validated subscriptions,
// so there is nothing to train on.
type NoDataError struct {
	OrgID string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no validated subscriptions available for training (organization %s)", e.OrgID)
}

// ModelNotFoundError reports a prediction attempt for an organization with no
// trained model. The caller must train first; prediction never silently falls
// back to keyword rules.
type ModelNotFoundError struct {
	OrgID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model for organization %s not found: train the model first", e.OrgID)
}
