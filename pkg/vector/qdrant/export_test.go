package qdrant

var ParseTarget = parseTarget
