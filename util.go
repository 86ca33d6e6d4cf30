package store

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reDSNPass  = regexp.MustCompile(`(?i)(://)([^:/@]+):([^@]+)(@)`)
	rePassword = regexp.MustCompile(`(?i)(password=)([^\s;&]+)`)
)

// maskDSN hides credentials in a connection string before it is logged.
func maskDSN(dsn string) string {
	out := reDSNPass.ReplaceAllString(dsn, "$1$2:***$4")
	return rePassword.ReplaceAllString(out, "$1***")
}

// dbTag is the parsed form of a `db` struct tag:
//
//	db:"name,key auto size=100 allownull unique type=varchar"
type dbTag struct {
	name      string
	size      int
	dataType  string
	isAuto    bool
	isKey     bool
	allowNull bool
	unique    bool
	skip      bool
}

func parseDBTag(value string) dbTag {
	var tag dbTag
	tagArr := strings.SplitN(value, ",", 2)

	tag.name = strings.TrimSpace(tagArr[0])
	if tag.name == "-" {
		tag.skip = true
		return tag
	}

	checkBool := func(key string, kv []string) bool {
		if !strings.EqualFold(strings.TrimSpace(kv[0]), key) {
			return false
		}

		if len(kv) > 1 {
			b, err := strconv.ParseBool(strings.TrimSpace(kv[1]))
			return err == nil && b
		}

		return true
	}

	if len(tagArr) > 1 {
		for _, v := range strings.Fields(tagArr[1]) {
			kv := strings.SplitN(v, "=", 2)
			key := strings.TrimSpace(kv[0])

			switch {
			case checkBool("auto", kv):
				tag.isAuto = true
			case checkBool("key", kv):
				tag.isKey = true
			case checkBool("allownull", kv):
				tag.allowNull = true
			case checkBool("unique", kv):
				tag.unique = true
			case len(kv) > 1 && strings.EqualFold(key, "size"):
				tag.size, _ = strconv.Atoi(kv[1])
			case len(kv) > 1 && strings.EqualFold(key, "type"):
				tag.dataType = kv[1]
			}
		}
	}

	if tag.isKey {
		tag.allowNull = false
	}

	return tag
}

func Map[In any, Out any](list []In, mapFn func(val In) Out) []Out {
	var newSlice = make([]Out, len(list))
	for i, val := range list {
		newSlice[i] = mapFn(val)
	}

	return newSlice
}

func SliceContains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}

	return false
}

func FilterSlice[T any](slice []T, filterFunc func(val T) bool) []T {
	var newSlice []T
	for i, val := range slice {
		if filterFunc(val) {
			newSlice = append(newSlice, slice[i])
		}
	}

	return newSlice
}
