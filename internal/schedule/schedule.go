// Package schedule loads the cron-like job file driving the garden.
//
// Each line is five standard cron fields followed by a device name and a
// duration in seconds:
//
//	30 6 * * * pump 45
//	0 18 * * * lamp 3600
//
// Lines starting with '#' and blank lines are skipped. A malformed line is
// reported as a LineError but never prevents the valid lines around it from
// loading; a file without a single valid entry is a configuration error.
package schedule

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"autoplant/internal/model"
)

// DefaultDuration applies when a schedule line omits the duration field.
const DefaultDuration = 10 * time.Second

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Entry is one parsed schedule line.
type Entry struct {
	Device   model.Device
	Spec     string
	Duration time.Duration
	Line     int

	sched cron.Schedule
}

// Next returns the first time after t at which the entry fires.
func (e Entry) Next(t time.Time) time.Time {
	return e.sched.Next(t)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s", e.Spec, e.Device, e.Duration)
}

// Job is a concrete upcoming firing of an entry.
type Job struct {
	At    time.Time
	Entry Entry
}

// LineError describes a rejected schedule line.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// Schedule is an immutable set of entries loaded from one file.
type Schedule struct {
	entries []Entry
}

// Load reads and parses the schedule file.
func Load(path string) (*Schedule, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads schedule lines from r. It returns the parsed schedule, the
// per-line errors, and an error only when nothing valid was found.
func Parse(r io.Reader) (*Schedule, []LineError, error) {
	var (
		entries []Entry
		errs    []LineError
		lineNo  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			errs = append(errs, LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		entry.Line = lineNo
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs, fmt.Errorf("read schedule: %w", err)
	}
	if len(entries) == 0 {
		return nil, errs, fmt.Errorf("no valid schedule entries")
	}
	return &Schedule{entries: entries}, errs, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return Entry{}, fmt.Errorf("expected at least 6 fields, got %d", len(fields))
	}
	spec := strings.Join(fields[:5], " ")
	sched, err := parser.Parse(spec)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	device, err := model.ParseDevice(fields[5])
	if err != nil {
		return Entry{}, err
	}

	duration := DefaultDuration
	if len(fields) >= 7 {
		secs, err := strconv.Atoi(fields[6])
		if err != nil {
			return Entry{}, fmt.Errorf("invalid duration %q: %w", fields[6], err)
		}
		if secs <= 0 {
			return Entry{}, fmt.Errorf("duration must be positive, got %d", secs)
		}
		duration = time.Duration(secs) * time.Second
	}

	return Entry{Device: device, Spec: spec, Duration: duration, sched: sched}, nil
}

// Entries returns the parsed entries in file order.
func (s *Schedule) Entries() []Entry {
	return s.entries
}

// Jobs returns every entry paired with its next fire time after now, sorted
// by time.
func (s *Schedule) Jobs(now time.Time) []Job {
	jobs := make([]Job, 0, len(s.entries))
	for _, e := range s.entries {
		jobs = append(jobs, Job{At: e.Next(now), Entry: e})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].At.Before(jobs[j].At) })
	return jobs
}

// Next returns the soonest upcoming jobs: the entry firing first and every
// other entry sharing that exact instant.
func (s *Schedule) Next(now time.Time) []Job {
	jobs := s.Jobs(now)
	if len(jobs) == 0 {
		return nil
	}
	group := jobs[:1]
	for _, j := range jobs[1:] {
		if !j.At.Equal(group[0].At) {
			break
		}
		group = append(group, j)
	}
	return group
}

// Due returns the jobs firing within the window after now.
func (s *Schedule) Due(now time.Time, window time.Duration) []Job {
	var due []Job
	for _, j := range s.Jobs(now) {
		if j.At.Sub(now) >= window {
			break
		}
		due = append(due, j)
	}
	return due
}
