package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ScheduleEntryError reports a schedule file entry that was skipped.
type ScheduleEntryError struct {
	Name string
	Err  error
}

func (e *ScheduleEntryError) Error() string {
	return fmt.Sprintf("schedule entry %q: %v", e.Name, e.Err)
}

func (e *ScheduleEntryError) Unwrap() error {
	return e.Err
}

// scheduleFileEntry is one entry of the schedule file:
//
//	todo_cleanup:
//	  cron: "0 3 * * *"
//	  class: todo.cleanup
//	  queue: low
//	  args:
//	    days_old: 30
//	  lock: until_executed
type scheduleFileEntry struct {
	Cron       string         `yaml:"cron" validate:"required"`
	Task       string         `yaml:"task" validate:"required_without=Class"`
	Class      string         `yaml:"class"`
	Queue      string         `yaml:"queue"`
	Priority   *int           `yaml:"priority" validate:"omitempty,min=0,max=100"`
	MaxRetries *int           `yaml:"max_retries" validate:"omitempty,min=0,max=10"`
	Args       map[string]any `yaml:"args"`
	Lock       string         `yaml:"lock" validate:"omitempty,oneof=until_executed"`
}

var scheduleValidator = validator.New(validator.WithRequiredStructEnabled())

// LoadScheduleFile reads schedule entries from a YAML file.
// A missing file yields no entries and no error.
func LoadScheduleFile(path string) ([]ScheduleEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidScheduleFile, err)
	}
	return ParseSchedule(data)
}

// ParseSchedule parses a YAML mapping of entry name to entry definition,
// keeping file order.
//
// Entries that fail to parse are left out and reported together as
// *ScheduleEntryError values joined into the returned error, next to the
// entries that did parse. ErrInvalidScheduleFile means nothing could be read.
func ParseSchedule(data []byte) ([]ScheduleEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScheduleFile, err)
	}

	// Empty document
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of entry names", ErrInvalidScheduleFile)
	}

	var (
		entries []ScheduleEntry
		errs    []error
		seen    = make(map[string]bool)
	)

	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value

		if seen[name] {
			errs = append(errs, entryError(name, errors.New("duplicate entry name")))
			continue
		}
		seen[name] = true

		entry, err := parseScheduleEntry(name, root.Content[i+1])
		if err != nil {
			errs = append(errs, entryError(name, err))
			continue
		}
		entries = append(entries, entry)
	}

	return entries, errors.Join(errs...)
}

func entryError(name string, err error) error {
	if !errors.Is(err, ErrInvalidSchedule) {
		err = fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	return &ScheduleEntryError{Name: name, Err: err}
}

func parseScheduleEntry(name string, node *yaml.Node) (ScheduleEntry, error) {
	if name == "" {
		return ScheduleEntry{}, errors.New("entry name is required")
	}

	var raw scheduleFileEntry
	if err := node.Decode(&raw); err != nil {
		return ScheduleEntry{}, err
	}
	if err := scheduleValidator.Struct(raw); err != nil {
		return ScheduleEntry{}, err
	}

	sched, err := ParseCron(raw.Cron)
	if err != nil {
		return ScheduleEntry{}, err
	}

	entry := ScheduleEntry{
		Name:       name,
		Cron:       raw.Cron,
		Task:       raw.Task,
		Queue:      raw.Queue,
		Args:       raw.Args,
		Uniqueness: Uniqueness(raw.Lock),
		Schedule:   sched,
	}
	if entry.Task == "" {
		entry.Task = raw.Class
	}
	if entry.Queue == "" {
		entry.Queue = DefaultQueueName
	}
	if raw.Priority != nil {
		entry.Priority = Priority(*raw.Priority)
	}
	if raw.MaxRetries != nil {
		entry.MaxRetries = int8(*raw.MaxRetries)
	}

	return entry, nil
}
