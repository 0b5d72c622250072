// Package solver implements the version constraint solver. It
// accumulates semver ranges per package name across resolution waves
// and decides a highest-satisfying version per package, or records a
// conflict when the accumulated ranges cannot be satisfied together.
package solver

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/logging"
	"github.com/lodge-sh/lodge/pkg/types"
)

// rangeEntry keeps one accumulated range alongside its raw text for
// reporting.
type rangeEntry struct {
	raw        string
	constraint *semver.Constraints
}

// constraintEntry accumulates all ranges contributed for one package
// within one solver run.
type constraintEntry struct {
	name        string
	ranges      []rangeEntry
	requestedBy []string
}

// Conflict reports a package whose accumulated ranges could not all be
// satisfied. Chosen is empty unless force or an OnConflict callback
// picked a version anyway.
type Conflict struct {
	Name        string
	Ranges      []string
	RequestedBy []string
	Available   []string
	Chosen      string
}

// Result is the outcome of one Solve call.
type Result struct {
	Resolved  map[string]string
	Conflicts []Conflict
}

// Options controls conflict handling during Solve.
type Options struct {
	// Force picks the highest available version when no version
	// satisfies all ranges, still recording a conflict.
	Force bool

	// OnConflict delegates the choice to the caller (for example an
	// interactive prompt). Returning an error aborts the whole solve
	// with ErrResolveAborted.
	OnConflict func(Conflict) (string, error)
}

// Solver accumulates constraints and available versions for one
// resolution run. It is not safe for concurrent use; resolution waves
// feed it sequentially.
type Solver struct {
	logger      zerolog.Logger
	constraints map[string]*constraintEntry
	available   map[string][]*semver.Version
	seen        map[string]map[string]bool
}

// New returns an empty Solver.
func New() *Solver {
	return &Solver{
		logger:      logging.GetLogger("solver"),
		constraints: make(map[string]*constraintEntry),
		available:   make(map[string][]*semver.Version),
		seen:        make(map[string]map[string]bool),
	}
}

// Reset clears all accumulated state so the solver can serve an
// independent resolution run.
func (s *Solver) Reset() {
	s.constraints = make(map[string]*constraintEntry)
	s.available = make(map[string][]*semver.Version)
	s.seen = make(map[string]map[string]bool)
}

// isWildcard reports whether a range contributes no constraint at all.
func isWildcard(rng string) bool {
	switch rng {
	case "", "*", "latest":
		return true
	}
	return false
}

// AddConstraint records a range contributed by requestedBy for the
// named package. Wildcard, empty, and "latest" ranges are no-ops and
// are never stored. An unparseable range is a configuration error.
func (s *Solver) AddConstraint(name, rng, requestedBy string) error {
	if isWildcard(rng) {
		return nil
	}
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return errors.Wrapf(err, errors.ErrRangeInvalid,
			"invalid version range %q for %s (requested by %s)", rng, name, requestedBy)
	}

	key := types.NormalizeName(name)
	entry := s.constraints[key]
	if entry == nil {
		entry = &constraintEntry{name: key}
		s.constraints[key] = entry
	}
	entry.ranges = append(entry.ranges, rangeEntry{raw: rng, constraint: c})
	entry.requestedBy = append(entry.requestedBy, requestedBy)

	s.logger.Trace().Str("package", key).Str("range", rng).Str("requestedBy", requestedBy).
		Msg("constraint added")
	return nil
}

// AddAvailableVersion records a version known to exist for a package.
// Values that are not valid semver are ignored.
func (s *Solver) AddAvailableVersion(name, version string) {
	v, err := semver.NewVersion(version)
	if err != nil {
		s.logger.Debug().Str("package", name).Str("version", version).
			Msg("ignoring non-semver version")
		return
	}
	key := types.NormalizeName(name)
	if s.seen[key] == nil {
		s.seen[key] = make(map[string]bool)
	}
	if s.seen[key][v.String()] {
		return
	}
	s.seen[key][v.String()] = true
	s.available[key] = append(s.available[key], v)
}

// satisfies checks a version against a constraint, letting pre-release
// versions participate: a pre-release passes when its release core
// would pass.
func satisfies(c *semver.Constraints, v *semver.Version) bool {
	if c.Check(v) {
		return true
	}
	if v.Prerelease() == "" {
		return false
	}
	core := semver.New(v.Major(), v.Minor(), v.Patch(), "", "")
	return c.Check(core)
}

// Solve decides one version per constrained package. The output is
// deterministic for fixed inputs: package names and candidate versions
// are ordered before any decision, so insertion order (for example
// from concurrent fetches) never influences the result.
func (s *Solver) Solve(opts Options) (*Result, error) {
	result := &Result{Resolved: make(map[string]string)}

	names := make(map[string]bool, len(s.constraints)+len(s.available))
	for name := range s.constraints {
		names[name] = true
	}
	for name := range s.available {
		names[name] = true
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	for _, name := range ordered {
		versions := append([]*semver.Version(nil), s.available[name]...)
		sort.Sort(semver.Collection(versions))

		entry := s.constraints[name]
		if entry == nil {
			// Discovered incidentally with zero constraints:
			// highest available wins, no conflict handling.
			if len(versions) > 0 {
				result.Resolved[name] = versions[len(versions)-1].String()
			}
			continue
		}

		best := s.highestSatisfying(entry, versions)
		if best != nil {
			result.Resolved[name] = best.String()
			continue
		}

		conflict := s.newConflict(entry, versions)
		switch {
		case opts.Force:
			if len(versions) > 0 {
				conflict.Chosen = versions[len(versions)-1].String()
				result.Resolved[name] = conflict.Chosen
			}
		case opts.OnConflict != nil:
			chosen, err := opts.OnConflict(conflict)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrResolveAborted,
					"resolution aborted while resolving %s", name)
			}
			if chosen != "" {
				conflict.Chosen = chosen
				result.Resolved[name] = chosen
			}
		}
		result.Conflicts = append(result.Conflicts, conflict)
		s.logger.Warn().Str("package", name).Strs("ranges", conflict.Ranges).
			Str("chosen", conflict.Chosen).Msg("version conflict")
	}

	return result, nil
}

// highestSatisfying returns the highest version satisfying every
// accumulated range, or nil.
func (s *Solver) highestSatisfying(entry *constraintEntry, sorted []*semver.Version) *semver.Version {
	for i := len(sorted) - 1; i >= 0; i-- {
		v := sorted[i]
		ok := true
		for _, r := range entry.ranges {
			if !satisfies(r.constraint, v) {
				ok = false
				break
			}
		}
		if ok {
			return v
		}
	}
	return nil
}

func (s *Solver) newConflict(entry *constraintEntry, sorted []*semver.Version) Conflict {
	conflict := Conflict{Name: entry.name}
	for _, r := range entry.ranges {
		conflict.Ranges = append(conflict.Ranges, r.raw)
	}
	conflict.RequestedBy = append(conflict.RequestedBy, entry.requestedBy...)
	for _, v := range sorted {
		conflict.Available = append(conflict.Available, v.String())
	}
	return conflict
}
