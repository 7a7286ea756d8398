// SPDX-License-Identifier: MIT
/*
Package fade implements a real-time volume fade-out effect with:
- A shared attenuation divisor read lock-free by the audio callback
- A drift-corrected 10ms stepping task that grows the divisor exponentially
- Cooperative cancellation through the shared state
- Host stop requests marshaled onto the host's control loop

Thread Safety:
- Start and Process perform atomic loads and stores only
- Finish takes the controller mutex only when a fade is still running at
  the end of a stream, to conclude it; otherwise it is atomic only
- Control operations (RequestFadeOut, ForceStop) serialize on that mutex
- At most one stepping task drives a given fade; superseded tasks are
  woken through their context and exit
*/
package fade
