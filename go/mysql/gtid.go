/*
   Copyright 2022 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"sort"
	"strings"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
)

// ParseGTIDSet parses a MySQL GTID set as printed by the server. Embedded
// newlines and blanks, as found in @@gtid_executed, are ignored.
func ParseGTIDSet(gtidSet string) (*gomysql.MysqlGTIDSet, error) {
	normalized := strings.Join(strings.Fields(gtidSet), "")
	set, err := gomysql.ParseMysqlGTIDSet(normalized)
	if err != nil {
		return nil, err
	}
	return set.(*gomysql.MysqlGTIDSet), nil
}

// NormalizeGTIDSet returns the canonical text of a GTID set
func NormalizeGTIDSet(gtidSet string) (string, error) {
	set, err := ParseGTIDSet(gtidSet)
	if err != nil {
		return "", err
	}
	return set.String(), nil
}

// GTIDSetUnion returns the canonical text of the union of both sets
func GTIDSetUnion(gtidSet string, other string) (string, error) {
	set, err := ParseGTIDSet(gtidSet)
	if err != nil {
		return "", err
	}
	otherSet, err := ParseGTIDSet(other)
	if err != nil {
		return "", err
	}
	if len(otherSet.Sets) > 0 {
		if err := set.Update(otherSet.String()); err != nil {
			return "", err
		}
	}
	return set.String(), nil
}

// GTIDSetSubtract returns the transactions of gtidSet that are not in subtract,
// with the same meaning as the server's GTID_SUBTRACT()
func GTIDSetSubtract(gtidSet string, subtract string) (string, error) {
	minuend, err := ParseGTIDSet(gtidSet)
	if err != nil {
		return "", err
	}
	subtrahend, err := ParseGTIDSet(subtract)
	if err != nil {
		return "", err
	}
	result := &gomysql.MysqlGTIDSet{Sets: map[string]*gomysql.UUIDSet{}}
	for sid, uuidSet := range minuend.Sets {
		intervals := uuidSet.Intervals
		if other, ok := subtrahend.Sets[sid]; ok {
			intervals = subtractIntervals(intervals, other.Intervals)
		}
		if len(intervals) > 0 {
			result.Sets[sid] = &gomysql.UUIDSet{SID: uuidSet.SID, Intervals: intervals}
		}
	}
	return result.String(), nil
}

// subtractIntervals removes every interval of b from a. Both are normalized:
// sorted, non overlapping, with exclusive Stop.
func subtractIntervals(a, b gomysql.IntervalSlice) gomysql.IntervalSlice {
	result := gomysql.IntervalSlice{}
	for _, interval := range a {
		start := interval.Start
		for _, cut := range b {
			if cut.Stop <= start || cut.Start >= interval.Stop {
				continue
			}
			if cut.Start > start {
				result = append(result, gomysql.Interval{Start: start, Stop: cut.Start})
			}
			start = cut.Stop
			if start >= interval.Stop {
				break
			}
		}
		if start < interval.Stop {
			result = append(result, gomysql.Interval{Start: start, Stop: interval.Stop})
		}
	}
	return result
}

// GTIDSetContains returns true when every transaction of subset is in superset
func GTIDSetContains(superset string, subset string) (bool, error) {
	supersetGTIDs, err := ParseGTIDSet(superset)
	if err != nil {
		return false, err
	}
	subsetGTIDs, err := ParseGTIDSet(subset)
	if err != nil {
		return false, err
	}
	return supersetGTIDs.Contain(subsetGTIDs), nil
}

// GTIDTransactionCount returns the number of transactions in a GTID set
func GTIDTransactionCount(gtidSet string) (int64, error) {
	set, err := ParseGTIDSet(gtidSet)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, uuidSet := range set.Sets {
		for _, interval := range uuidSet.Intervals {
			count += interval.Stop - interval.Start
		}
	}
	return count, nil
}

// GTIDSetSourceUUIDs returns the sorted source UUIDs present in a GTID set
func GTIDSetSourceUUIDs(gtidSet string) ([]string, error) {
	set, err := ParseGTIDSet(gtidSet)
	if err != nil {
		return nil, err
	}
	uuids := []string{}
	for sid := range set.Sets {
		uuids = append(uuids, sid)
	}
	sort.Strings(uuids)
	return uuids, nil
}
