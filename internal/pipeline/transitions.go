package pipeline

import "hiring-pipeline/internal/models"

// Gate is a business precondition checked after an edge is found legal.
type Gate string

const (
	// GateRoundCompleted requires the interview of the current round to be COMPLETED.
	GateRoundCompleted Gate = "INTERVIEW_ROUND_COMPLETED"
	// GateEvaluation requires a positive evaluation with no newer REJECT.
	GateEvaluation Gate = "EVALUATION_SIGNAL"
	// GateAssessment requires every issued test to be passed. It applies only
	// when tests are required before interviews.
	GateAssessment Gate = "ASSESSMENT_PASSED"
)

// Rule describes who may take an edge and what must hold first.
type Rule struct {
	Roles []models.Role
	Gates []Gate
	// OwnerOnly restricts the edge to the applicant who owns the application.
	OwnerOnly bool
}

// kind folds every INTERVIEW_R{n} status into a single table key.
type kind string

const kindInterview kind = "INTERVIEW"

func kindOf(s models.ApplicationStatus) kind {
	if s.IsInterview() {
		return kindInterview
	}
	return kind(s)
}

type edge struct {
	from kind
	to   kind
}

var (
	staff    = []models.Role{models.RoleRecruiter, models.RoleAdmin}
	withdraw = Rule{Roles: []models.Role{models.RoleApplicant}, OwnerOnly: true}
)

// table is the single source of truth for legal status changes. Anything not
// listed, including every skip-ahead, is an illegal transition.
var table = map[edge]Rule{
	{kind(models.StatusApplied), kind(models.StatusScreening)}: {Roles: staff},
	{kind(models.StatusApplied), kind(models.StatusRejected)}:  {Roles: staff},
	{kind(models.StatusApplied), kind(models.StatusWithdrawn)}: withdraw,

	{kind(models.StatusScreening), kind(models.StatusShortlisted)}: {Roles: staff},
	{kind(models.StatusScreening), kind(models.StatusUnderReview)}: {Roles: staff},
	{kind(models.StatusScreening), kindInterview}:                  {Roles: staff, Gates: []Gate{GateAssessment}},
	{kind(models.StatusScreening), kind(models.StatusRejected)}:    {Roles: staff},
	{kind(models.StatusScreening), kind(models.StatusWithdrawn)}:   withdraw,

	{kind(models.StatusShortlisted), kind(models.StatusUnderReview)}: {Roles: staff},
	{kind(models.StatusShortlisted), kindInterview}:                  {Roles: staff, Gates: []Gate{GateAssessment}},
	{kind(models.StatusShortlisted), kind(models.StatusRejected)}:    {Roles: staff},
	{kind(models.StatusShortlisted), kind(models.StatusWithdrawn)}:   withdraw,

	{kind(models.StatusUnderReview), kind(models.StatusShortlisted)}: {Roles: staff},
	{kind(models.StatusUnderReview), kindInterview}:                  {Roles: staff, Gates: []Gate{GateAssessment}},
	{kind(models.StatusUnderReview), kind(models.StatusRejected)}:    {Roles: staff},
	{kind(models.StatusUnderReview), kind(models.StatusWithdrawn)}:   withdraw,

	{kindInterview, kindInterview}:                {Roles: staff, Gates: []Gate{GateRoundCompleted}},
	{kindInterview, kind(models.StatusOffered)}:   {Roles: staff, Gates: []Gate{GateRoundCompleted, GateEvaluation}},
	{kindInterview, kind(models.StatusRejected)}:  {Roles: staff},
	{kindInterview, kind(models.StatusWithdrawn)}: withdraw,

	{kind(models.StatusOffered), kind(models.StatusHired)}:     {Roles: staff},
	{kind(models.StatusOffered), kind(models.StatusRejected)}:  {Roles: staff},
	{kind(models.StatusOffered), kind(models.StatusWithdrawn)}: withdraw,
}

// Lookup returns the rule of the edge from → to. Interview statuses must
// advance one round at a time and the first interview is always round 1.
func Lookup(from, to models.ApplicationStatus) (Rule, bool) {
	rule, ok := table[edge{kindOf(from), kindOf(to)}]
	if !ok {
		return Rule{}, false
	}
	if toRound, isInterview := to.InterviewRound(); isInterview {
		fromRound, _ := from.InterviewRound()
		if toRound != fromRound+1 {
			return Rule{}, false
		}
	}
	return rule, true
}

// Targets lists every status reachable from from in one step, in a stable order.
func Targets(from models.ApplicationStatus) []models.ApplicationStatus {
	candidates := []models.ApplicationStatus{
		models.StatusScreening, models.StatusShortlisted, models.StatusUnderReview,
	}
	round, _ := from.InterviewRound()
	candidates = append(candidates, models.InterviewStatus(round+1),
		models.StatusOffered, models.StatusHired, models.StatusRejected, models.StatusWithdrawn)

	out := make([]models.ApplicationStatus, 0, len(candidates))
	for _, to := range candidates {
		if _, ok := Lookup(from, to); ok {
			out = append(out, to)
		}
	}
	return out
}
