package utils

func Box[T any](t T) *T { return &t }
