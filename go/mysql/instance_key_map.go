/*
   Copyright 2015 Shlomi Noach, courtesy Booking.com
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

// InstanceKeyMap is a set of keys; topology walks use it to remember visited servers
type InstanceKeyMap map[InstanceKey]bool

func NewInstanceKeyMap() *InstanceKeyMap {
	return &InstanceKeyMap{}
}

func (this *InstanceKeyMap) Len() int {
	return len(*this)
}

// AddKey adds a single key to this map
func (this *InstanceKeyMap) AddKey(key InstanceKey) {
	(*this)[key] = true
}

// HasKey checks if given key is within the map
func (this *InstanceKeyMap) HasKey(key InstanceKey) bool {
	_, ok := (*this)[key]
	return ok
}
