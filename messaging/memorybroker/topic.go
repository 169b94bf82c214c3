package memorybroker

import "strings"

// topicMatches reports whether routingKey matches an AMQP topic binding pattern,
// where "*" matches exactly one word and "#" matches zero or more words.
func topicMatches(pattern string, routingKey string) bool {
	if pattern == routingKey {
		return true
	}

	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern []string, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}

			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}

			return false

		case "*":
			if len(key) == 0 {
				return false
			}

		default:
			if len(key) == 0 || pattern[0] != key[0] {
				return false
			}
		}

		pattern = pattern[1:]
		key = key[1:]
	}

	return len(key) == 0
}
