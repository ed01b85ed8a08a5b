package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/metrics"
	"github.com/carvesec/carve/pkg/probe"
	"github.com/carvesec/carve/pkg/store"
)

// Scheduler runs one competition's checks.
type Scheduler struct {
	st       *store.Store
	resolver Resolver

	// newProber is swapped by tests to script probe outcomes.
	newProber func(*config.CheckSpec) (probe.Prober, error)
	now       func() time.Time
}

// New creates a scheduler over a store and resolver.
func New(st *store.Store, resolver Resolver) *Scheduler {
	return &Scheduler{
		st:        st,
		resolver:  resolver,
		newProber: probe.New,
		now:       time.Now,
	}
}

// Run starts one worker per configured check and blocks until the
// context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	comp := s.st.Competition()

	var wg sync.WaitGroup
	for i := range comp.Checks {
		check := &comp.Checks[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, check)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// nextTick returns the next wall-clock multiple of interval at or after
// now.
func nextTick(now time.Time, interval time.Duration) time.Time {
	i := int64(interval / time.Second)
	secs := now.Unix()
	next := (secs + i - 1) / i * i
	if next == secs && now.Nanosecond() > 0 {
		next += i
	}
	return time.Unix(next, 0)
}

func (s *Scheduler) worker(ctx context.Context, check *config.Check) {
	logger := log.WithCheck(check.Name)
	logger.Info().Int("interval", check.Interval).Msg("Check worker started")

	interval := check.IntervalDuration()
	var lastTick time.Time
	for {
		tick := nextTick(s.now(), interval)
		if !lastTick.IsZero() && !tick.After(lastTick) {
			tick = lastTick.Add(interval)
		}

		timer := time.NewTimer(tick.Sub(s.now()))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("Check worker stopped")
			return
		}

		s.runTick(ctx, check, tick)
		lastTick = tick
	}
}

// runTick executes one phase-aligned pass of a check over every
// (team, box) pair it selects.
func (s *Scheduler) runTick(ctx context.Context, check *config.Check, tick time.Time) {
	comp := s.st.Competition()
	metrics.TicksTotal.WithLabelValues(check.Name).Inc()

	for _, team := range comp.Teams {
		s.runTeam(ctx, check, team.Name, tick)
	}
}

func (s *Scheduler) runTeam(ctx context.Context, check *config.Check, team string, tick time.Time) {
	comp := s.st.Competition()
	logger := log.WithCheck(check.Name).With().Str("team", team).Logger()

	var (
		passing  []string
		total    int
		messages []string
	)

	for i := range comp.Boxes {
		box := &comp.Boxes[i]
		if !check.SelectsBox(box) {
			continue
		}

		host := comp.BoxFQDN(box.Name, team)
		ip, err := s.resolver.Resolve(ctx, host)
		if err != nil || net.ParseIP(ip) == nil {
			// Unresolvable boxes are outside the tick, not failures.
			metrics.ResolutionFailures.WithLabelValues(check.Name).Inc()
			logger.Debug().Err(err).Str("host", host).Msg("Skipping unresolvable box")
			continue
		}
		total++

		if err := s.st.RecordBoxIP(ctx, team, box.Name, ip); err != nil {
			logger.Warn().Err(err).Msg("Failed to record box ip")
		}

		timer := metrics.NewTimer()
		result := s.probeBox(ctx, check, team, box, ip)
		timer.ObserveDurationVec(metrics.ProbeDuration, check.Name)

		outcome := "failure"
		if result.Success {
			outcome = "success"
			passing = append(passing, box.Name)
		}
		metrics.ChecksRun.WithLabelValues(check.Name, outcome).Inc()
		messages = append(messages, fmt.Sprintf("%s: %s", box.Name, result.Message))
	}

	// A tick that probed nothing is outside the check entirely: no boxes
	// selected, or none resolvable. The previous state stands.
	if total == 0 {
		logger.Debug().Msg("No boxes probed this tick")
		return
	}

	prev, err := s.st.CheckState(ctx, team, check.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read previous check state")
		prev = store.EmptyCheckState()
	}

	state := store.CheckCurrentState{
		Success:      len(passing) == total,
		Messages:     messages,
		Fraction:     store.SuccessFraction{Passed: len(passing), Total: total},
		PassingBoxes: passing,
	}
	if state.Success {
		state.Failures = 0
	} else {
		state.Failures = prev.Failures + 1
	}

	if err := s.st.SetCheckState(ctx, team, check.Name, state); err != nil {
		logger.Warn().Err(err).Msg("Failed to write check state")
	}
	if len(passing) > 0 {
		teamID := comp.TeamID(team)
		if err := s.st.RecordSuccess(ctx, teamID, check.Name, tick.Unix(), len(passing)); err != nil {
			logger.Warn().Err(err).Msg("Failed to record ledger events")
		}
	}
}

// probeBox renders the spec for one (team, box) pair and executes it.
func (s *Scheduler) probeBox(ctx context.Context, check *config.Check, team string, box *config.Box, ip string) probe.Result {
	data := TemplateData{
		TeamName:        team,
		BoxName:         box.Name,
		CompetitionName: s.st.Competition().Name,
		IPAddress:       ip,
	}
	if username, password, err := s.st.Credentials(ctx, team, box.Name); err == nil {
		data.Username = username
		data.Password = password
	} else if !errors.Is(err, store.ErrNotFound) {
		return probe.Result{Success: false, Message: fmt.Sprintf("read credentials: %v", err)}
	}

	spec, err := renderSpec(check.Spec, data)
	if err != nil {
		return probe.Result{Success: false, Message: err.Error()}
	}
	prober, err := s.newProber(&spec)
	if err != nil {
		return probe.Result{Success: false, Message: err.Error()}
	}

	timeout := probe.DefaultTimeout
	if spec.Type == "nix" && spec.Shell.Timeout > 0 {
		timeout = time.Duration(spec.Shell.Timeout) * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return prober.Probe(probeCtx, ip)
}
