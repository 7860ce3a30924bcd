package railyard

// Version is the release of the railyard module.
const Version = "0.4.0"
