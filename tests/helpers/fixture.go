// Package helpers - unit fixtures used in tests.
package helpers

func SimpleFixture() string {
	return `
name = "simple"

[[unit]]
name = "simple"
source = '''
package simple

func Hello() string { return "hello" }
'''
`
}

func PizzaFixture() string {
	return `
name = "pizza"
go = "1.22"

[[unit]]
name = "example.com/pizza/dough"
source = '''
package dough

type Dough struct{ Grams int }
'''

[[unit]]
name = "example.com/pizza/sauce"
source = '''
package sauce

const Tomato = "san marzano"
'''

[[unit]]
name = "example.com/pizza/oven"
source = '''
package oven

import (
	"time"

	"example.com/pizza/dough"
	"example.com/pizza/sauce"
)

func Bake(d dough.Dough) (string, time.Duration) {
	return sauce.Tomato, time.Duration(d.Grams) * time.Second
}
'''
`
}

func BreakfastFixture() string {
	return `name: breakfast

-- breakfast/eggs.go --
package eggs

const Style = "over easy"
-- breakfast/plate.go --
package plate

import "breakfast/eggs"

var Order = "eggs " + eggs.Style
`
}

func BrokenFixture() string {
	return `
name = "broken"

[[unit]]
name = "broken"
source = '''
package broken

var X int = "cheese"
'''
`
}

func CycleFixture() string {
	return `
name = "cycle"

[[unit]]
name = "a"
source = '''
package a

import _ "b"
'''

[[unit]]
name = "b"
source = '''
package b

import _ "a"
'''
`
}

func BadNameFixture() string {
	return `
name = "badname"

[[unit]]
name = "no spaces allowed"
source = '''
package x
'''
`
}

func BrokenFixtureFixed() string {
	return `
name = "broken"

[[unit]]
name = "broken"
source = '''
package broken

var X int = 42
'''
`
}
