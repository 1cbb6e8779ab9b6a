package lifecycle

type actorRule int

const (
	workerOnly actorRule = iota + 1
	eitherParty
)

type edge struct {
	from Status
	to   Status
}

// transitions is the whole state machine. An edge missing here is illegal.
var transitions = map[edge]actorRule{
	{StatusPending, StatusAccepted}:     workerOnly,
	{StatusPending, StatusCancelled}:    workerOnly,
	{StatusAccepted, StatusInProgress}:  eitherParty,
	{StatusAccepted, StatusCancelled}:   workerOnly,
	{StatusInProgress, StatusCompleted}: eitherParty,
	{StatusInProgress, StatusCancelled}: workerOnly,
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// NextStatuses lists the statuses reachable from s, in lifecycle order.
func NextStatuses(s Status) []Status {
	var out []Status
	for _, to := range allStatuses {
		if CanTransition(s, to) {
			out = append(out, to)
		}
	}
	return out
}

// Permits reports whether actor may move req along from -> to.
// It returns false for edges that do not exist.
func Permits(req *ServiceRequest, actor Actor, from, to Status) bool {
	rule, ok := transitions[edge{from, to}]
	if !ok {
		return false
	}
	return rule.permits(req, actor)
}

func (r actorRule) permits(req *ServiceRequest, actor Actor) bool {
	if actor.UserID == "" {
		return false
	}
	isWorker := actor.Role == RoleWorker && actor.UserID == req.WorkerID
	isCustomer := actor.Role == RoleCustomer && actor.UserID == req.CustomerID

	switch r {
	case workerOnly:
		return isWorker
	case eitherParty:
		return isWorker || isCustomer
	}
	return false
}
