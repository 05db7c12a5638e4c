package interval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// PosType is the type used to represent interval coordinates.  int32 should be
// wide enough for some time to come, since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Interval is an immutable half-open ("interbase") genomic range
// [Start, Stop) on a single chromosome.  The zero value is not a valid
// interval; use New.
type Interval struct {
	chrom string
	start PosType
	stop  PosType
}

// New returns the interval [start, stop) on chrom.  It fails with an
// errors.Invalid error if stop <= start or start < 0.
func New(chrom string, start, stop PosType) (Interval, error) {
	if start < 0 {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.New: negative start %d on %s", start, chrom))
	}
	if stop <= start {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.New: invalid interval %s:%d-%d (stop <= start)", chrom, start, stop))
	}
	return Interval{chrom: chrom, start: start, stop: stop}, nil
}

// IsInvalid reports whether err was caused by an attempt to construct an
// invalid interval.
func IsInvalid(err error) bool {
	return err != nil && errors.Is(errors.Invalid, err)
}

// Chrom returns the chromosome name.
func (iv Interval) Chrom() string { return iv.chrom }

// Start returns the 0-based inclusive start.
func (iv Interval) Start() PosType { return iv.start }

// Stop returns the 0-based exclusive stop.
func (iv Interval) Stop() PosType { return iv.stop }

// Len returns the number of bases covered.
func (iv Interval) Len() int { return int(iv.stop - iv.start) }

// Overlaps returns whether iv and o share at least one base.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.chrom == o.chrom && iv.start < o.stop && o.start < iv.stop
}

// Pad returns iv expanded by p bases on both sides.  The start is clamped to
// 0 and the stop to PosTypeMax.  iv itself is unchanged.
func (iv Interval) Pad(p PosType) Interval {
	if p <= 0 {
		return iv
	}
	start := iv.start - p
	if start < 0 {
		start = 0
	}
	stop := iv.stop
	if stop > PosTypeMax-p {
		stop = PosTypeMax
	} else {
		stop += p
	}
	return Interval{chrom: iv.chrom, start: start, stop: stop}
}

// closed returns the inclusive key [start, stop-1] used by Index.
func (iv Interval) closed() (low, high PosType) {
	return iv.start, iv.stop - 1
}

// TabixRange returns the 1-based inclusive "first-last" form, e.g. "101-200"
// for [100, 200).
func (iv Interval) TabixRange() string {
	return strconv.Itoa(int(iv.start)+1) + "-" + strconv.Itoa(int(iv.stop))
}

// Tabix returns "chrom:first-last" in 1-based inclusive coordinates.
func (iv Interval) Tabix() string {
	return iv.chrom + ":" + iv.TabixRange()
}

// InterbaseRange returns the 0-based half-open "start-stop" form.
func (iv Interval) InterbaseRange() string {
	return strconv.Itoa(int(iv.start)) + "-" + strconv.Itoa(int(iv.stop))
}

// Interbase returns "chrom:start-stop" in 0-based half-open coordinates.
func (iv Interval) Interbase() string {
	return iv.chrom + ":" + iv.InterbaseRange()
}

// String implements fmt.Stringer.  It returns the interbase form.
func (iv Interval) String() string { return iv.Interbase() }

func parsePos(s, region string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.E(errors.Invalid, err, fmt.Sprintf("invalid position %q in region %q", s, region))
	}
	return int(v), nil
}

// ParsePos parses a decimal coordinate, rejecting values at or above
// PosTypeMax.  Negative values are returned; New rejects them.
func ParsePos(s string) (PosType, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.E(errors.Invalid, err, fmt.Sprintf("interval.ParsePos: invalid position %q", s))
	}
	if v >= PosTypeMax {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("interval.ParsePos: position %d out of range", v))
	}
	return PosType(v), nil
}

// ParseTabixRange parses a range of one of the forms
//   [1-based first pos]-[last pos]
//   [1-based pos]
// on chrom, returning the equivalent interbase interval.  "101-200" yields
// [100, 200).
func ParseTabixRange(chrom, rangeStr string) (Interval, error) {
	if chrom == "" {
		return Interval{}, errors.E(errors.Invalid, "interval.ParseTabixRange: empty contig ID")
	}
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		pos1, err := parsePos(rangeStr, rangeStr)
		if err != nil {
			return Interval{}, err
		}
		if pos1 <= 0 || pos1 >= PosTypeMax {
			return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseTabixRange: position %v out of range", rangeStr))
		}
		return New(chrom, PosType(pos1-1), PosType(pos1))
	}
	start1, err := parsePos(rangeStr[:dashPos], rangeStr)
	if err != nil {
		return Interval{}, err
	}
	if start1 <= 0 {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseTabixRange: position %v out of range", rangeStr[:dashPos]))
	}
	last, err := parsePos(rangeStr[dashPos+1:], rangeStr)
	if err != nil {
		return Interval{}, err
	}
	if last < start1 || last >= PosTypeMax {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseTabixRange: invalid range string %v", rangeStr))
	}
	return New(chrom, PosType(start1-1), PosType(last))
}

// ParseTabix parses "chrom:first-last" or "chrom:pos" (1-based, inclusive).
func ParseTabix(region string) (Interval, error) {
	chrom, rangeStr, err := splitRegion(region)
	if err != nil {
		return Interval{}, err
	}
	return ParseTabixRange(chrom, rangeStr)
}

// ParseInterbase parses "chrom:start-stop" (0-based, half-open), the inverse
// of Interval.Interbase.
func ParseInterbase(region string) (Interval, error) {
	chrom, rangeStr, err := splitRegion(region)
	if err != nil {
		return Interval{}, err
	}
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseInterbase: missing '-' in %q", region))
	}
	start, err := parsePos(rangeStr[:dashPos], region)
	if err != nil {
		return Interval{}, err
	}
	stop, err := parsePos(rangeStr[dashPos+1:], region)
	if err != nil {
		return Interval{}, err
	}
	if stop >= PosTypeMax {
		return Interval{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseInterbase: stop out of range in %q", region))
	}
	return New(chrom, PosType(start), PosType(stop))
}

func splitRegion(region string) (chrom, rangeStr string, err error) {
	if len(region) == 0 {
		return "", "", errors.E(errors.Invalid, "interval: empty region string")
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos <= 0 {
		return "", "", errors.E(errors.Invalid, fmt.Sprintf("interval: region %q lacks a contig ID", region))
	}
	return region[:colonPos], region[colonPos+1:], nil
}
