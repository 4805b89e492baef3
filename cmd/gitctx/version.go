package main

// version is gitctx's semver, bumped on release.
const version = "0.1.0"
