/*
Package spinalcord is the coordination core of an agent runtime.

# Overview

A Runtime owns one instance of each coordination primitive and runs the
loops that connect them:

  - event.Bus fans events out to in-process subscribers
  - flow carries messages between cells with bounded backpressure
  - security.Controller holds the process-wide safe-mode latch
  - security.Cell turns fault reports into safe mode and developer notifications
  - scheduler orders tasks by priority and the executor runs them

# Basic Usage

	settings, err := config.Load("spinalcord.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	rt, err := spinalcord.New(settings, spinalcord.WithTaskFunc(runTask))
	if err != nil {
	    log.Fatal(err)
	}
	defer rt.Close()

	go func() {
	    for n := range rt.Notifications().Chan() {
	        page(n.Description)
	    }
	}()

	if err := rt.Run(ctx); err != nil {
	    log.Fatal(err)
	}

Organs report faults with ReportFault. While safe mode is active, tasks
marked Risky are deferred; they are requeued after an authorized Reset.

# Lifecycle

New constructs everything; Run blocks until ctx is cancelled, a
ControlShutdown message arrives on the flow channel, or a loop fails. Close
releases channels and the event log and must be called after Run returns.
Nothing is persisted except the event log.
*/
package spinalcord
