package cachedir

var Resolve = resolve
