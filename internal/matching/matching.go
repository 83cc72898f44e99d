// Package matching scores worker/job fit for recommendations.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/example/domestyx/internal/models"
)

const (
	JobRecommendationLimit    = 20
	WorkerRecommendationLimit = 30

	textLanguageCap = 2
)

// JobFacts is the part of a job that scoring reads.
type JobFacts struct {
	Title                string
	Description          string
	Location             string
	PreferredNationality string
	RequiredSkills       []string
	RequiredLanguages    []string
}

// WorkerFacts is the part of a worker profile that scoring reads.
type WorkerFacts struct {
	Services    []string
	Languages   []string
	Nationality string
	City        string
	State       string
	Country     string
}

func JobFactsFrom(job *models.Job) JobFacts {
	return JobFacts{
		Title:                job.Title,
		Description:          job.Description,
		Location:             job.Location,
		PreferredNationality: job.PreferredNationality,
		RequiredSkills:       job.SkillsRequired,
		RequiredLanguages:    job.LanguageRequirements,
	}
}

func WorkerFactsFrom(profile *models.WorkerProfile) WorkerFacts {
	return WorkerFacts{
		Services:    profile.Services,
		Languages:   profile.Languages,
		Nationality: profile.Nationality,
		City:        profile.City,
		State:       profile.State,
		Country:     profile.Country,
	}
}

// Score is an additive, unnormalized fit score. Higher is better.
func Score(job JobFacts, worker WorkerFacts) int {
	blob := strings.ToLower(job.Title + " " + job.Description)
	skills := lowerSet(job.RequiredSkills)
	languages := lowerSet(job.RequiredLanguages)

	score := 0
	for _, service := range normalize(worker.Services) {
		if strings.Contains(blob, service) {
			score++
		}
		if _, ok := skills[service]; ok {
			score += 2
		}
	}

	inText := 0
	for _, language := range normalize(worker.Languages) {
		if strings.Contains(blob, language) {
			inText++
		}
		if _, ok := languages[language]; ok {
			score++
		}
	}
	score += min(inText, textLanguageCap)

	nationality := strings.TrimSpace(job.PreferredNationality)
	if nationality != "" && strings.EqualFold(nationality, strings.TrimSpace(worker.Nationality)) {
		score += 2
	}

	location := strings.ToLower(job.Location)
	for _, place := range []string{worker.City, worker.State, worker.Country} {
		place = strings.ToLower(strings.TrimSpace(place))
		if place != "" && strings.Contains(location, place) {
			score += 2
			break
		}
	}

	return score
}

type ScoredJob struct {
	Job   models.Job
	Score int
}

type ScoredWorker struct {
	Profile models.WorkerProfile
	Score   int
}

// RankJobs keeps positively scored jobs, best first, newest first among ties.
func RankJobs(worker WorkerFacts, jobs []models.Job, limit int) []ScoredJob {
	ranked := make([]ScoredJob, 0, len(jobs))
	for _, job := range jobs {
		if s := Score(JobFactsFrom(&job), worker); s > 0 {
			ranked = append(ranked, ScoredJob{Job: job, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedBefore(ranked[i].Score, ranked[j].Score, ranked[i].Job.PostedAt, ranked[j].Job.PostedAt)
	})
	return truncate(ranked, limit)
}

// RankWorkers keeps positively scored workers, best first, most recently
// joined first among ties.
func RankWorkers(job JobFacts, profiles []models.WorkerProfile, limit int) []ScoredWorker {
	ranked := make([]ScoredWorker, 0, len(profiles))
	for _, profile := range profiles {
		if s := Score(job, WorkerFactsFrom(&profile)); s > 0 {
			ranked = append(ranked, ScoredWorker{Profile: profile, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedBefore(ranked[i].Score, ranked[j].Score, joinedAt(ranked[i].Profile), joinedAt(ranked[j].Profile))
	})
	return truncate(ranked, limit)
}

func joinedAt(profile models.WorkerProfile) time.Time {
	if profile.User != nil {
		return profile.User.CreatedAt
	}
	return profile.CreatedAt
}

func rankedBefore(scoreA, scoreB int, timeA, timeB time.Time) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return timeA.After(timeB)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range normalize(values) {
		set[v] = struct{}{}
	}
	return set
}
