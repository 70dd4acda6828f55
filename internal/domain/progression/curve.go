// Package progression contains the XP/level progression core: the level
// curve, XP amount resolution, bonus composition, and the activity cooldown
// gate. It has no persistence or transport dependencies.
package progression

import (
	"errors"
	"fmt"
)

// MaxLevel is the highest reachable level. XP beyond the level 100 threshold
// does not raise the level any further.
const MaxLevel = 100

// xpThresholds holds the cumulative total XP required to reach each level.
// Index = level (0-100). The values follow the MEE6 progression curve and are
// fixed constants shared by every component; level is always derived from
// total XP, never stored independently.
var xpThresholds = [MaxLevel + 1]int{
	0,       // 0
	100,     // 1
	255,     // 2
	475,     // 3
	770,     // 4
	1150,    // 5
	1625,    // 6
	2205,    // 7
	2900,    // 8
	3720,    // 9
	4675,    // 10
	5775,    // 11
	7030,    // 12
	8450,    // 13
	10045,   // 14
	11825,   // 15
	13800,   // 16
	15980,   // 17
	18375,   // 18
	20995,   // 19
	23850,   // 20
	26950,   // 21
	30305,   // 22
	33925,   // 23
	37820,   // 24
	42000,   // 25
	46475,   // 26
	51255,   // 27
	56350,   // 28
	61770,   // 29
	67525,   // 30
	73625,   // 31
	80080,   // 32
	86900,   // 33
	94095,   // 34
	101675,  // 35
	109650,  // 36
	118030,  // 37
	126825,  // 38
	136045,  // 39
	145700,  // 40
	155800,  // 41
	166355,  // 42
	177375,  // 43
	188870,  // 44
	200850,  // 45
	213325,  // 46
	226305,  // 47
	239800,  // 48
	253820,  // 49
	268375,  // 50
	283475,  // 51
	299130,  // 52
	315350,  // 53
	332145,  // 54
	349525,  // 55
	367500,  // 56
	386080,  // 57
	405275,  // 58
	425095,  // 59
	445550,  // 60
	466650,  // 61
	488405,  // 62
	510825,  // 63
	533920,  // 64
	557700,  // 65
	582175,  // 66
	607355,  // 67
	633250,  // 68
	659870,  // 69
	687225,  // 70
	715325,  // 71
	744180,  // 72
	773800,  // 73
	804195,  // 74
	835375,  // 75
	867350,  // 76
	900130,  // 77
	933725,  // 78
	968145,  // 79
	1003400, // 80
	1039500, // 81
	1076455, // 82
	1114275, // 83
	1152970, // 84
	1192550, // 85
	1233025, // 86
	1274405, // 87
	1316700, // 88
	1359920, // 89
	1404075, // 90
	1449175, // 91
	1495230, // 92
	1542250, // 93
	1590245, // 94
	1639225, // 95
	1689200, // 96
	1740180, // 97
	1792175, // 98
	1845195, // 99
	1899250, // 100
}

// MaxXP is the total XP threshold of MaxLevel. Total XP is clamped here;
// extra XP beyond the cap is discarded, not banked.
var MaxXP = xpThresholds[MaxLevel]

// ErrInvalidLevel is returned when a level outside [0, MaxLevel] is given.
var ErrInvalidLevel = errors.New("progression: level must be between 0 and 100")

// LevelForXP returns the highest level whose threshold does not exceed
// totalXP. The result is always in [0, MaxLevel]; negative input maps to
// level 0.
func LevelForXP(totalXP int) int {
	if totalXP <= 0 {
		return 0
	}
	if totalXP >= MaxXP {
		return MaxLevel
	}

	// Binary search for the last threshold <= totalXP.
	lo, hi := 0, MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xpThresholds[mid] <= totalXP {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// XPForLevel returns the cumulative total XP required to reach the given
// level. Fails with ErrInvalidLevel outside [0, MaxLevel].
func XPForLevel(level int) (int, error) {
	if level < 0 || level > MaxLevel {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLevel, level)
	}
	return xpThresholds[level], nil
}

// XPToNextLevel returns how much more total XP is needed to reach the next
// level, or 0 if the member is already at MaxLevel.
func XPToNextLevel(totalXP int) int {
	level := LevelForXP(totalXP)
	if level >= MaxLevel {
		return 0
	}
	return xpThresholds[level+1] - totalXP
}

// ClampTotalXP clamps a total XP value into the valid [0, MaxXP] domain.
func ClampTotalXP(totalXP int) int {
	if totalXP < 0 {
		return 0
	}
	if totalXP > MaxXP {
		return MaxXP
	}
	return totalXP
}

// Thresholds returns a copy of the full level table. The keys of the result
// are levels, the values the cumulative XP needed to be awarded that level.
func Thresholds() map[int]int {
	out := make(map[int]int, MaxLevel+1)
	for level, xp := range xpThresholds {
		out[level] = xp
	}
	return out
}
